package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/getlantern/systray"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tweetsaver/internal/app"
	"github.com/ibeckermayer/tweetsaver/internal/auth"
	"github.com/ibeckermayer/tweetsaver/internal/config"
	"github.com/ibeckermayer/tweetsaver/internal/store"
	"github.com/ibeckermayer/tweetsaver/internal/tray"
)

var noTray bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open x.com and start saving posts",
	Long: `Starts the browser session, the settings page and the connectivity
probe. By default a tray icon offers "Save Tweet to Obsidian", settings and
login; with --no-tray the process runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg := loadConfig(logger)

		settingsPath, err := config.SettingsPath()
		if err != nil {
			return err
		}
		st, err := store.New(settingsPath)
		if err != nil {
			return fmt.Errorf("opening settings: %w", err)
		}
		defer st.Close()

		authManager, err := newAuthManager(logger)
		if err != nil {
			return err
		}
		if !authManager.IsAuthenticated() {
			logger.Warn("Not logged in to X - run 'tweetsaver login' or log in in the browser window")
		}

		path, err := configPath()
		if err != nil {
			return err
		}
		a, err := app.New(cfg, path, st, authManager, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.Start(ctx); err != nil {
			return err
		}
		logger.Info("tweetsaver starting...")

		if noTray {
			<-ctx.Done()
			a.Stop()
			return nil
		}

		go func() {
			<-ctx.Done()
			systray.Quit()
		}()
		// Blocks until Quit; OnExit stops the app.
		systray.Run(tray.OnReady(ctx, a, logger), tray.OnExit(a, logger))
		return nil
	},
}

func newAuthManager(logger *log.Logger) (*auth.Manager, error) {
	path, err := auth.DefaultCookieStorePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie store path: %w", err)
	}
	return auth.NewManager(auth.NewCookieStore(path), logger.WithPrefix("auth")), nil
}

func init() {
	runCmd.Flags().BoolVar(&noTray, "no-tray", false, "run without a tray icon")
	rootCmd.AddCommand(runCmd)
}
