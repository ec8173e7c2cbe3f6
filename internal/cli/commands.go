package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	browseropts "github.com/ibeckermayer/tweetsaver/internal/browser"
	"github.com/ibeckermayer/tweetsaver/internal/config"
	"github.com/ibeckermayer/tweetsaver/internal/popup"
)

var saveSource string

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the post shown in the running tweetsaver browser",
	Long: `Asks a running 'tweetsaver run' to save the post currently shown in its
browser window. Bind this command to a global keyboard shortcut.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg := loadConfig(logger)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		resp, err := popup.TriggerSave(ctx, cfg.Popup.Addr, saveSource)
		if err != nil {
			return err
		}
		logger.Info("Save requested", "page", resp.PageURL, "id", resp.ID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to X in a browser window and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newAuthManager(newLogger())
		if err != nil {
			return err
		}
		return m.Login(cmd.Context())
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored X session",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newAuthManager(newLogger())
		if err != nil {
			return err
		}
		return m.Logout()
	},
}

var openCmd = &cobra.Command{
	Use:       "open <config|data>",
	Short:     "Open the config file or the data directory",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"config", "data"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		var err error

		switch args[0] {
		case "config":
			path, err = config.ConfigPath()
		case "data":
			path, err = config.ConfigDir()
		}
		if err != nil {
			return fmt.Errorf("failed to get path: %w", err)
		}
		return browser.OpenFile(path)
	},
}

var botTestCmd = &cobra.Command{
	Use:   "bot-test",
	Short: "Open bot.sannysoft.com to audit the browser fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		logger.Info("Opening bot.sannysoft.com with stealth browser options...")

		allocCtx, cancel := chromedp.NewExecAllocator(cmd.Context(), browseropts.Options(false)...)
		defer cancel()

		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		go func() {
			if err := chromedp.Run(ctx, chromedp.Navigate("https://bot.sannysoft.com")); err != nil {
				logger.Error("Failed to navigate", "err", err)
			}
		}()

		fmt.Fprintln(os.Stdout, "Press Enter to end program...")
		fmt.Scanln()
		return nil
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveSource, "source", popup.SourceShortcut, "request source: shortcut or context")

	rootCmd.AddCommand(saveCmd, loginCmd, logoutCmd, openCmd, botTestCmd)
}
