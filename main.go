package main

import (
	"os"

	"github.com/ibeckermayer/tweetsaver/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
