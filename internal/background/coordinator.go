// Package background implements the long-lived coordinator that owns the
// Obsidian configuration and storage client and serves the data-carrying
// router actions.
package background

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ibeckermayer/tweetsaver/internal/note"
	"github.com/ibeckermayer/tweetsaver/internal/obsidian"
	"github.com/ibeckermayer/tweetsaver/internal/router"
	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// Actions lists what the coordinator serves.
var Actions = []router.Action{
	router.ActionSaveTweet,
	router.ActionTestConnection,
	router.ActionUpdateConfig,
	router.ActionGetConfig,
	router.ActionGetStatus,
}

// SettingsStore is the persistent side of the configuration.
type SettingsStore interface {
	LoadConfiguration(ctx context.Context) (types.Configuration, error)
	SaveCredentials(ctx context.Context, apiKey, baseURL string) error
}

// Coordinator serves configuration and save requests. All of its state is
// owned by the Run goroutine.
type Coordinator struct {
	inbox      chan *router.Envelope
	store      SettingsStore
	formatter  *note.Formatter
	clientOpts []obsidian.Option
	logger     *log.Logger

	// nil until Init succeeds or updateConfig arrives.
	client *obsidian.Client

	probes    chan probeResult
	lastProbe *probeResult
}

type probeResult struct {
	ok bool
	at time.Time
}

// New creates a coordinator. Call Init, register Inbox with the router and
// run Run.
func New(st SettingsStore, formatter *note.Formatter, logger *log.Logger, clientOpts ...obsidian.Option) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		inbox:      make(chan *router.Envelope, 16),
		probes:     make(chan probeResult, 4),
		store:      st,
		formatter:  formatter,
		clientOpts: append(clientOpts, obsidian.WithLogger(logger)),
		logger:     logger,
	}
}

// Inbox is where the router delivers requests.
func (c *Coordinator) Inbox() chan<- *router.Envelope {
	return c.inbox
}

// Init builds the storage client from static, if it carries an API key,
// and from the settings store otherwise. It must be called before Run.
func (c *Coordinator) Init(ctx context.Context, static *types.Configuration) error {
	if static != nil && static.HasAPIKey() {
		c.client = c.newClient(*static)
		c.logger.Info("Obsidian API initialized with config file", "baseUrl", c.client.Config().BaseURL)
		return nil
	}

	cfg, err := c.store.LoadConfiguration(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored settings: %w", err)
	}
	c.client = c.newClient(cfg)
	if cfg.HasAPIKey() {
		c.logger.Info("Obsidian API initialized with stored settings", "baseUrl", cfg.BaseURL)
	} else {
		c.logger.Warn("Obsidian API initialized without API key - please configure", "baseUrl", cfg.BaseURL)
	}
	return nil
}

// Run serves requests until ctx is done. Network calls run in their own
// goroutines so a slow service never stalls configuration requests.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.inbox:
			c.handle(ctx, env)
		case p := <-c.probes:
			c.lastProbe = &p
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, env *router.Envelope) {
	switch env.Action {
	case router.ActionSaveTweet:
		if c.client == nil || !c.client.Config().HasAPIKey() {
			env.Reply(router.Failure(router.ErrNotInitialized))
			return
		}
		if env.TweetData == nil {
			env.Reply(router.Response{Success: false, Error: "missing tweetData"})
			return
		}
		client, rec := c.client, *env.TweetData
		go func() {
			fileName, err := client.Save(ctx, rec)
			if err != nil {
				c.logger.Error("Error saving tweet", "url", rec.URL, "err", err)
				env.Reply(router.Failure(err))
				return
			}
			c.logger.Info("Saved tweet", "file", fileName, "base", env.BaseName)
			env.Reply(router.Response{Success: true, FileName: fileName})
		}()

	case router.ActionTestConnection:
		if c.client == nil {
			env.Reply(router.Failure(router.ErrNotInitialized))
			return
		}
		client := c.client
		go func() {
			ok := client.TestConnection(ctx)
			env.Reply(router.Response{Success: ok})
			select {
			case c.probes <- probeResult{ok: ok, at: time.Now()}:
			case <-ctx.Done():
			}
		}()

	case router.ActionUpdateConfig:
		cfg := types.Configuration{APIKey: env.APIKey, BaseURL: env.BaseURL}
		if c.client != nil {
			cfg.DefaultGroupName = c.client.Config().DefaultGroupName
		}
		c.client = c.newClient(cfg)
		if err := c.store.SaveCredentials(ctx, env.APIKey, c.client.Config().BaseURL); err != nil {
			c.logger.Error("failed to persist settings", "err", err)
			env.Reply(router.Failure(err))
			return
		}
		c.logger.Info("Configuration updated", "baseUrl", c.client.Config().BaseURL)
		env.Reply(router.Response{Success: true})

	case router.ActionGetConfig:
		cfg := types.Configuration{}.WithDefaults()
		if c.client != nil {
			cfg = c.client.Config()
		}
		hasKey := cfg.HasAPIKey()
		env.Reply(router.Response{Success: true, HasAPIKey: &hasKey, BaseURL: cfg.BaseURL})

	case router.ActionGetStatus:
		resp := router.Response{Success: true}
		if c.lastProbe != nil {
			ok := c.lastProbe.ok
			resp.Connected = &ok
			resp.CheckedAt = c.lastProbe.at.UTC().Format(time.RFC3339)
		}
		env.Reply(resp)

	default:
		env.Reply(router.Response{Success: false, Error: fmt.Sprintf("unknown action %q", env.Action)})
	}
}

func (c *Coordinator) newClient(cfg types.Configuration) *obsidian.Client {
	return obsidian.New(cfg, c.formatter, c.clientOpts...)
}
