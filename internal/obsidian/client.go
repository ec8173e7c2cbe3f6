// Package obsidian talks to the Obsidian Local REST API plugin.
package obsidian

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ibeckermayer/tweetsaver/internal/note"
	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// DefaultProbeTimeout bounds TestConnection.
const DefaultProbeTimeout = 5 * time.Second

// notesFolder is the vault folder every note is written into.
const notesFolder = "references"

// Client saves notes to a running Obsidian instance. It is immutable: a
// configuration change builds a new Client.
type Client struct {
	cfg          types.Configuration
	formatter    *note.Formatter
	client       *http.Client
	probeTimeout time.Duration
	logger       *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithProbeTimeout sets the TestConnection timeout. Zero or negative keeps
// the default.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for cfg. Absent fields get their defaults.
func New(cfg types.Configuration, formatter *note.Formatter, opts ...Option) *Client {
	c := &Client{
		cfg:          cfg.WithDefaults(),
		formatter:    formatter,
		client:       &http.Client{},
		probeTimeout: DefaultProbeTimeout,
		logger:       log.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.cfg.BaseURL = strings.TrimRight(c.cfg.BaseURL, "/")
	return c
}

// Config returns the configuration snapshot the client was built with.
func (c *Client) Config() types.Configuration {
	return c.cfg
}

// Save writes rec as a note and returns the file name it was stored under
// (without the .md extension).
func (c *Client) Save(ctx context.Context, rec types.PostRecord) (string, error) {
	fileName := note.FileName(rec)
	body, err := c.formatter.Format(rec, fileName)
	if err != nil {
		return "", err
	}
	c.logger.Debug("saving note", "file", fileName)

	endpoint := c.cfg.BaseURL + "/vault/" + notesFolder + "/" + url.PathEscape(fileName) + ".md"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/markdown")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if !ok(resp.StatusCode) {
		return "", &StatusError{Code: resp.StatusCode, Text: statusText(resp)}
	}

	return fileName, nil
}

// TestConnection probes the service root. Every failure collapses to false.
func (c *Client) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/", nil)
	if err != nil {
		return false
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("connection probe failed", "url", c.cfg.BaseURL, "err", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return ok(resp.StatusCode)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
}

// StatusError is returned by Save when the service answers with a non-2xx
// status.
type StatusError struct {
	Code int
	Text string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Text)
}

func ok(code int) bool {
	return code >= 200 && code < 300
}

// statusText returns the reason phrase the server sent, e.g. "Unauthorized"
// for "401 Unauthorized".
func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	text = strings.TrimSpace(text)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
