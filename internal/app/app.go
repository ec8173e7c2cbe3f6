package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/browser"

	"github.com/ibeckermayer/tweetsaver/internal/auth"
	"github.com/ibeckermayer/tweetsaver/internal/background"
	"github.com/ibeckermayer/tweetsaver/internal/config"
	"github.com/ibeckermayer/tweetsaver/internal/note"
	"github.com/ibeckermayer/tweetsaver/internal/obsidian"
	"github.com/ibeckermayer/tweetsaver/internal/page"
	"github.com/ibeckermayer/tweetsaver/internal/popup"
	"github.com/ibeckermayer/tweetsaver/internal/router"
	"github.com/ibeckermayer/tweetsaver/internal/scheduler"
	"github.com/ibeckermayer/tweetsaver/internal/store"
	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// App wires the coordinator, the page session, the settings page and the
// probe together over one router.
type App struct {
	authManager *auth.Manager // immutable after creation
	store       *store.Store
	router      *router.Router
	coord       *background.Coordinator
	popup       *popup.Server
	sched       *scheduler.Scheduler
	logger      *log.Logger

	configPath string

	mu        sync.RWMutex
	config    *config.Config
	connected *bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a new App instance. configPath is the file ReloadConfig reads.
func New(cfg *config.Config, configPath string, st *store.Store, authManager *auth.Manager, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}

	formatter, err := note.New(time.Local)
	if err != nil {
		return nil, fmt.Errorf("failed to build note template: %w", err)
	}

	sched, err := scheduler.New("Local", logger.WithPrefix("scheduler"))
	if err != nil {
		return nil, err
	}

	r := router.New(logger.WithPrefix("router"))
	coord := background.New(st, formatter, logger.WithPrefix("background"),
		obsidian.WithProbeTimeout(cfg.Probe.Timeout.Duration))

	settingsPage := popup.New(cfg.Popup.Addr, r, st, logger.WithPrefix("popup"))
	settingsPage.EnablePreview(popup.NewPreviewer(formatter))

	return &App{
		authManager: authManager,
		store:       st,
		router:      r,
		coord:       coord,
		popup:       settingsPage,
		sched:       sched,
		logger:      logger,
		config:      cfg,
		configPath:  configPath,
	}, nil
}

// Router returns the router shared by all components.
func (a *App) Router() *router.Router {
	return a.router
}

// Start initializes the coordinator and launches every component. It
// returns once they are running; Stop shuts them down.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	cfg := a.getConfig()
	var static *types.Configuration
	if c, ok := cfg.Configuration(); ok {
		static = &c
	}
	if err := a.coord.Init(ctx, static); err != nil {
		cancel()
		return err
	}
	a.router.Handle(a.coord.Inbox(), background.Actions...)
	a.seedDefaultBase(ctx, cfg)

	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	a.goRun("background", func() error {
		a.coord.Run(ctx)
		return nil
	})
	a.goRun("popup", func() error {
		return a.popup.ListenAndServe(ctx)
	})
	a.goRun("page", func() error {
		return a.newSession(cfg).Run(ctx)
	})

	if cfg.Probe.Schedule != "" {
		if err := a.sched.AddProbeJob(cfg.Probe.Schedule, a.Probe); err != nil {
			a.logger.Warn("Connectivity probe disabled", "err", err)
		} else {
			a.sched.Start()
		}
	}
	return nil
}

// seedDefaultBase stores the config file's default base unless the user
// already picked one on the settings page.
func (a *App) seedDefaultBase(ctx context.Context, cfg *config.Config) {
	if cfg.Obsidian.DefaultBase == "" {
		return
	}
	if _, ok, err := a.store.Get(ctx, store.KeyDefaultBase); err != nil || ok {
		return
	}
	if err := a.store.SaveDefaultBase(ctx, cfg.Obsidian.DefaultBase); err != nil {
		a.logger.Warn("failed to store default base", "err", err)
	}
}

func (a *App) newSession(cfg *config.Config) *page.Session {
	return page.NewSession(page.Options{
		Headless:      cfg.Browser.Headless,
		StartURL:      cfg.Browser.StartURL,
		FrameInterval: cfg.Page.FrameInterval.Duration,
		Cookies:       a.authManager.Cookies(),
	}, a.router, a.store, a.logger.WithPrefix("page"))
}

func (a *App) goRun(name string, fn func() error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Component stopped", "component", name, "err", err)
		}
	}()
}

// Stop cancels all components and waits for them to return.
func (a *App) Stop() {
	<-a.sched.Stop().Done()

	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	a.logger.Info("tweetsaver stopped")
}

// Probe runs a connectivity test against the note service and records the
// result for the tray.
func (a *App) Probe(ctx context.Context) error {
	resp, err := a.router.Send(ctx, router.Message{Action: router.ActionTestConnection})
	if err != nil {
		return err
	}

	ok := resp.Success
	a.mu.Lock()
	changed := a.connected == nil || *a.connected != ok
	a.connected = &ok
	a.mu.Unlock()

	if changed {
		a.logger.Info("Obsidian connectivity changed", "connected", ok)
	}
	if !ok && resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}

// Connected returns the last probe result; known is false before the first
// probe.
func (a *App) Connected() (connected, known bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.connected == nil {
		return false, false
	}
	return *a.connected, true
}

// SaveFromContext asks the page session to save the current post, as the
// browser context menu would.
func (a *App) SaveFromContext(ctx context.Context) error {
	return a.router.Notify(ctx, router.Message{Action: router.ActionSaveTweetFromContext})
}

// OpenSettings opens the settings page in the default browser.
func (a *App) OpenSettings() error {
	return browser.OpenURL(a.popup.URL())
}

// IsAuthenticated checks if X.com credentials are stored.
func (a *App) IsAuthenticated() bool {
	return a.authManager.IsAuthenticated()
}

// TriggerLogin starts the X.com login flow. The new cookies apply to the
// next page session.
func (a *App) TriggerLogin(ctx context.Context) error {
	a.logger.Info("Login triggered - opening browser for X.com authentication")
	if err := a.authManager.Login(ctx); err != nil {
		a.logger.Error("Login failed", "err", err)
		return err
	}
	return nil
}

// TriggerLogout clears stored X.com credentials.
func (a *App) TriggerLogout() error {
	a.logger.Info("Logout triggered - clearing stored cookies")
	if err := a.authManager.Logout(); err != nil {
		a.logger.Error("Logout failed", "err", err)
		return err
	}
	return nil
}

// ConfigPath is the config file in use.
func (a *App) ConfigPath() string {
	return a.configPath
}

// ReloadConfig reloads the configuration from disk. A usable API key in
// the file replaces the active credentials.
func (a *App) ReloadConfig(ctx context.Context) error {
	cfg, err := config.LoadFrom(a.configPath)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.config = cfg
	a.mu.Unlock()

	if c, ok := cfg.Configuration(); ok {
		resp, err := a.router.Send(ctx, router.Message{
			Action:  router.ActionUpdateConfig,
			APIKey:  c.APIKey,
			BaseURL: c.BaseURL,
		})
		if err != nil {
			return err
		}
		if !resp.Success {
			return errors.New(resp.Error)
		}
	}

	a.logger.Info("Configuration reloaded")
	return nil
}

func (a *App) getConfig() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}
