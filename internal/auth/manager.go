package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/tweetsaver/internal/browser"
)

const (
	loginURL = "https://x.com/login"

	// loginTimeout is how long the user has to finish logging in.
	loginTimeout = 5 * time.Minute
	pollInterval = 2 * time.Second
)

// ErrLoginTimeout is returned when the login window was not completed in
// time.
var ErrLoginTimeout = errors.New("login timeout exceeded")

// Manager handles the x.com login used by the page session.
type Manager struct {
	cookieStore *CookieStore
	logger      *log.Logger
}

// NewManager creates a new auth manager
func NewManager(cookieStore *CookieStore, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{cookieStore: cookieStore, logger: logger}
}

// IsAuthenticated checks if we have valid stored credentials
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// Login opens a visible browser window for the user to log in to x.com and
// stores the resulting session cookies.
func (m *Manager) Login(ctx context.Context) error {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, browser.Options(false)...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	m.logger.Info("Waiting for login", "timeout", loginTimeout)
	if err := m.waitForLogin(browserCtx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cookies, err := extractCookies(browserCtx)
	if err != nil {
		return fmt.Errorf("failed to extract cookies: %w", err)
	}

	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	m.logger.Info("Login successful - cookies saved", "count", len(cookies))
	return nil
}

// waitForLogin polls until the browser shows the home timeline with an
// auth_token cookie.
func (m *Manager) waitForLogin(ctx context.Context) error {
	timeout := time.After(loginTimeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return ErrLoginTimeout
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var url string
			if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
				continue
			}
			if url != "https://x.com/home" && url != "https://twitter.com/home" {
				continue
			}

			cookies, err := extractCookies(ctx)
			if err != nil {
				continue
			}
			if hasSession(cookies) {
				return nil
			}
		}
	}
}

func hasSession(cookies []*network.Cookie) bool {
	for _, c := range cookies {
		if c.Name == cookieAuthToken && c.Value != "" {
			return true
		}
	}
	return false
}

// extractCookies gets all cookies from the browser
func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	if err := m.cookieStore.Clear(); err != nil {
		return err
	}
	m.logger.Info("Logout successful - cookies cleared")
	return nil
}

// Cookies returns the stored x.com cookies, or none when not logged in.
func (m *Manager) Cookies() []*network.Cookie {
	if !m.IsAuthenticated() {
		return nil
	}
	cookies, err := m.cookieStore.XCookies()
	if err != nil {
		m.logger.Warn("stored cookies unreadable", "err", err)
		return nil
	}
	return cookies
}
