package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tweetsaver/internal/config"
	"github.com/ibeckermayer/tweetsaver/internal/popup"
	"github.com/ibeckermayer/tweetsaver/internal/store"
	"github.com/ibeckermayer/tweetsaver/internal/types"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set the Obsidian API key and base URL interactively",
	Long: `Prompts for the Local REST API key and base URL. A running tweetsaver
picks them up immediately; otherwise they are stored for the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg := loadConfig(logger)

		apiKey, baseURL, err := promptCredentials(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		_, err = popup.UpdateConfig(ctx, cfg.Popup.Addr, apiKey, baseURL)
		if err == nil {
			logger.Info("Settings saved successfully!")
			return nil
		}
		if !errors.Is(err, popup.ErrNotRunning) {
			return err
		}

		settingsPath, err := config.SettingsPath()
		if err != nil {
			return err
		}
		st, err := store.New(settingsPath)
		if err != nil {
			return fmt.Errorf("opening settings: %w", err)
		}
		defer st.Close()

		if err := st.SaveCredentials(ctx, apiKey, baseURL); err != nil {
			return err
		}
		logger.Info("Settings saved, they apply on the next run", "path", settingsPath)
		return nil
	},
}

func promptCredentials(cfg *config.Config) (apiKey, baseURL string, err error) {
	keyPrompt := promptui.Prompt{
		Label: "Obsidian Local REST API key",
		Mask:  '*',
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("Please enter an API key")
			}
			return nil
		},
	}
	apiKey, err = keyPrompt.Run()
	if err != nil {
		return "", "", fmt.Errorf("api key: %w", err)
	}

	defaultURL := cfg.Obsidian.BaseURL
	if defaultURL == "" {
		defaultURL = types.DefaultBaseURL
	}
	urlPrompt := promptui.Prompt{
		Label:   "Obsidian base URL",
		Default: defaultURL,
		Validate: func(s string) error {
			u, err := url.Parse(strings.TrimSpace(s))
			if err != nil || u.Scheme == "" || u.Host == "" {
				return errors.New("enter a URL like " + types.DefaultBaseURL)
			}
			return nil
		},
	}
	baseURL, err = urlPrompt.Run()
	if err != nil {
		return "", "", fmt.Errorf("base url: %w", err)
	}

	return strings.TrimSpace(apiKey), strings.TrimSpace(baseURL), nil
}

func init() {
	rootCmd.AddCommand(configureCmd)
}
