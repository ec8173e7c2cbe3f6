package tray

import (
	"context"
	_ "embed"
	"time"

	"github.com/charmbracelet/log"
	"github.com/getlantern/systray"
	"github.com/pkg/browser"

	"github.com/ibeckermayer/tweetsaver/internal/app"
)

//go:embed icon.png
var iconBytes []byte

// statusRefresh is how often the connectivity label is refreshed.
const statusRefresh = 5 * time.Second

// StatusLabel renders the connectivity line of the menu.
func StatusLabel(connected, known bool) string {
	switch {
	case !known:
		return "○ Obsidian: checking..."
	case connected:
		return "● Connected to Obsidian"
	default:
		return "○ Obsidian unreachable"
	}
}

// AuthLabels returns the login status line and the login/logout action.
func AuthLabels(authenticated bool) (status, action string) {
	if authenticated {
		return "● Logged in to X", "Logout"
	}
	return "○ Not logged in to X", "Login to X"
}

// OnReady returns a systray onReady callback that sets up the menu.
func OnReady(ctx context.Context, a *app.App, logger *log.Logger) func() {
	return func() {
		systray.SetTemplateIcon(iconBytes, iconBytes)
		systray.SetTitle("")
		systray.SetTooltip("tweetsaver - save posts from X to Obsidian")

		mStatus := systray.AddMenuItem(StatusLabel(a.Connected()), "Obsidian connectivity")
		mStatus.Disable()

		authStatus, authAction := AuthLabels(a.IsAuthenticated())
		mAuthStatus := systray.AddMenuItem(authStatus, "X.com login status")
		mAuthStatus.Disable()
		mAuthAction := systray.AddMenuItem(authAction, "Login or logout from X")

		systray.AddSeparator()

		// The browser context menu entry of the extension.
		mSave := systray.AddMenuItem("Save Tweet to Obsidian", "Save the post shown in the browser")
		mSettings := systray.AddMenuItem("Open Settings", "Configure the Obsidian connection")

		systray.AddSeparator()

		mEditConfig := systray.AddMenuItem("Edit Config", "Open config file in editor")
		mReloadConfig := systray.AddMenuItem("Reload Config", "Reload configuration from disk")

		systray.AddSeparator()

		mQuit := systray.AddMenuItem("Quit", "Exit tweetsaver")

		updateAuthUI := func() {
			status, action := AuthLabels(a.IsAuthenticated())
			mAuthStatus.SetTitle(status)
			mAuthAction.SetTitle(action)
		}

		ticker := time.NewTicker(statusRefresh)

		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return

				case <-ticker.C:
					mStatus.SetTitle(StatusLabel(a.Connected()))

				case <-mAuthAction.ClickedCh:
					if a.IsAuthenticated() {
						if err := a.TriggerLogout(); err != nil {
							logger.Error("Logout error", "err", err)
						}
					} else if err := a.TriggerLogin(ctx); err != nil {
						logger.Error("Login error", "err", err)
					}
					updateAuthUI()

				case <-mSave.ClickedCh:
					if err := a.SaveFromContext(ctx); err != nil {
						logger.Warn("Save not delivered", "err", err)
					}

				case <-mSettings.ClickedCh:
					if err := a.OpenSettings(); err != nil {
						logger.Error("Failed to open settings", "err", err)
					}

				case <-mEditConfig.ClickedCh:
					if err := browser.OpenFile(a.ConfigPath()); err != nil {
						logger.Error("Failed to open config file", "err", err)
					}

				case <-mReloadConfig.ClickedCh:
					if err := a.ReloadConfig(ctx); err != nil {
						logger.Error("Failed to reload config", "err", err)
					}

				case <-mQuit.ClickedCh:
					systray.Quit()
				}
			}
		}()
	}
}

// OnExit returns the systray onExit callback, which stops the app.
func OnExit(a *app.App, logger *log.Logger) func() {
	return func() {
		logger.Info("tweetsaver shutting down...")
		a.Stop()
	}
}
