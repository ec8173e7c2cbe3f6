package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables that override the Obsidian section of the file.
const (
	EnvAPIKey      = "TWEETSAVER_API_KEY"
	EnvBaseURL     = "TWEETSAVER_BASE_URL"
	EnvDefaultBase = "TWEETSAVER_DEFAULT_BASE"
)

// EnvPath returns the path of the optional .env file next to the config
// file at configPath.
func EnvPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), ".env")
}

// ApplyEnv overrides credentials from the .env file at path, then from the
// process environment. Empty values are ignored and a missing file is not
// an error. It reports whether anything was overridden.
func (c *Config) ApplyEnv(path string) (bool, error) {
	vars := map[string]string{}
	if path != "" {
		fromFile, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		for k, v := range fromFile {
			vars[k] = v
		}
	}
	for _, k := range []string{EnvAPIKey, EnvBaseURL, EnvDefaultBase} {
		if v := os.Getenv(k); v != "" {
			vars[k] = v
		}
	}

	changed := false
	set := func(dst *string, key string) {
		if v := vars[key]; v != "" {
			*dst = v
			changed = true
		}
	}
	set(&c.Obsidian.APIKey, EnvAPIKey)
	set(&c.Obsidian.BaseURL, EnvBaseURL)
	set(&c.Obsidian.DefaultBase, EnvDefaultBase)
	return changed, nil
}
