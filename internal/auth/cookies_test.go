package auth

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/network"
)

func testStore(t *testing.T, now time.Time) *CookieStore {
	t.Helper()
	cs := NewCookieStore(filepath.Join(t.TempDir(), "auth", "cookies.json"))
	cs.now = func() time.Time { return now }
	return cs
}

func session(expires time.Time) []*network.Cookie {
	exp := float64(expires.Unix())
	cookies := []*network.Cookie{
		{Name: "auth_token", Value: "a", Domain: ".x.com", Expires: exp},
		{Name: "ct0", Value: "c", Domain: ".x.com", Expires: exp},
		{Name: "guest_id", Value: "g", Domain: ".twitter.com", Expires: exp},
		{Name: "other", Value: "o", Domain: "example.com", Expires: exp},
	}
	// Chrome always reports these; their zero values do not decode.
	for _, c := range cookies {
		c.Priority = network.CookiePriorityMedium
		c.SourceScheme = network.CookieSourceSchemeSecure
	}
	return cookies
}

func TestCookieStore_SaveLoadValid(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := testStore(t, now)

	if cs.IsValid() {
		t.Fatal("IsValid before Save: got true")
	}
	if err := cs.Save(session(now.Add(24 * time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !cs.IsValid() {
		t.Error("IsValid after Save: got false")
	}

	stored, err := cs.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !stored.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("ExpiresAt: got %v", stored.ExpiresAt)
	}
}

func TestCookieStore_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := testStore(t, now)
	if err := cs.Save(session(now.Add(-time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cs.IsValid() {
		t.Error("IsValid with expired session: got true")
	}
}

func TestCookieStore_MissingCSRF(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := testStore(t, now)
	cookies := session(now.Add(time.Hour))
	if err := cs.Save(cookies[:1]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cs.IsValid() {
		t.Error("IsValid without ct0: got true")
	}
}

func TestCookieStore_XCookies(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := testStore(t, now)
	if err := cs.Save(session(now.Add(time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := cs.XCookies()
	if err != nil {
		t.Fatalf("XCookies: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("XCookies: got %d cookies, want 3", len(got))
	}
}

func TestManager_LogoutClearsCookies(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := testStore(t, now)
	if err := cs.Save(session(now.Add(time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m := NewManager(cs, log.New(io.Discard))
	if len(m.Cookies()) != 3 {
		t.Fatalf("Cookies before logout: got %d", len(m.Cookies()))
	}
	if err := m.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if m.IsAuthenticated() || m.Cookies() != nil {
		t.Error("still authenticated after Logout")
	}
	if err := m.Logout(); err != nil {
		t.Errorf("second Logout: %v", err)
	}
}
