package background

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ibeckermayer/tweetsaver/internal/note"
	"github.com/ibeckermayer/tweetsaver/internal/router"
	"github.com/ibeckermayer/tweetsaver/internal/store"
	"github.com/ibeckermayer/tweetsaver/internal/types"
)

type harness struct {
	router *router.Router
	store  *store.Store
	coord  *Coordinator
}

// start wires a coordinator to a router and a fresh settings store.
// static is passed to Init.
func start(t *testing.T, static *types.Configuration) *harness {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	f, err := note.New(time.UTC)
	if err != nil {
		t.Fatalf("note.New: %v", err)
	}

	logger := log.New(io.Discard)
	coord := New(st, f, logger)
	if err := coord.Init(context.Background(), static); err != nil {
		t.Fatalf("Init: %v", err)
	}

	r := router.New(logger)
	r.Handle(coord.Inbox(), Actions...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coord.Run(ctx)

	return &harness{router: r, store: st, coord: coord}
}

func (h *harness) send(t *testing.T, msg router.Message) router.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := h.router.Send(ctx, msg)
	if err != nil {
		t.Fatalf("Send(%s): %v", msg.Action, err)
	}
	return resp
}

func janeDoe() *types.PostRecord {
	return &types.PostRecord{
		URL:       "https://x.com/u/status/999",
		Author:    "Jane Doe",
		Timestamp: "2024-01-01T00:00:00Z",
	}
}

func TestSaveTweet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := start(t, &types.Configuration{BaseURL: srv.URL, APIKey: "k"})
	resp := h.send(t, router.Message{Action: router.ActionSaveTweet, TweetData: janeDoe()})
	if !resp.Success || resp.FileName != "Jane_Doe_999" {
		t.Errorf("got %+v, want success with fileName Jane_Doe_999", resp)
	}
}

func TestSaveTweet_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	h := start(t, &types.Configuration{BaseURL: srv.URL, APIKey: "k"})
	resp := h.send(t, router.Message{Action: router.ActionSaveTweet, TweetData: janeDoe()})
	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.Error != "HTTP 401: Unauthorized" {
		t.Errorf("Error: got %q, want %q", resp.Error, "HTTP 401: Unauthorized")
	}
}

func TestSaveTweet_NoAPIKey(t *testing.T) {
	h := start(t, nil)
	resp := h.send(t, router.Message{Action: router.ActionSaveTweet, TweetData: janeDoe()})
	if resp.Success || resp.Error != router.ErrNotInitialized.Error() {
		t.Errorf("got %+v, want not-initialized failure", resp)
	}
}

func TestNotInitialized(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()
	f, _ := note.New(time.UTC)

	// No Init: the coordinator has no client at all.
	coord := New(st, f, log.New(io.Discard))
	r := router.New(log.New(io.Discard))
	r.Handle(coord.Inbox(), Actions...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(ctx)

	for _, a := range []router.Action{router.ActionSaveTweet, router.ActionTestConnection} {
		resp, err := r.Send(ctx, router.Message{Action: a, TweetData: janeDoe()})
		if err != nil {
			t.Fatalf("Send(%s): %v", a, err)
		}
		if resp.Success || resp.Error != router.ErrNotInitialized.Error() {
			t.Errorf("%s: got %+v, want not-initialized failure", a, resp)
		}
	}

	resp, err := r.Send(ctx, router.Message{Action: router.ActionGetConfig})
	if err != nil {
		t.Fatalf("Send(getConfig): %v", err)
	}
	if resp.BaseURL != types.DefaultBaseURL || resp.HasAPIKey == nil || *resp.HasAPIKey {
		t.Errorf("getConfig before init: got %+v", resp)
	}
}

func TestUpdateConfigThenGetConfig(t *testing.T) {
	h := start(t, nil)

	resp := h.send(t, router.Message{Action: router.ActionGetConfig})
	if resp.HasAPIKey == nil || *resp.HasAPIKey {
		t.Fatalf("getConfig before update: got %+v", resp)
	}

	resp = h.send(t, router.Message{Action: router.ActionUpdateConfig, APIKey: "secret", BaseURL: "http://127.0.0.1:5555"})
	if !resp.Success {
		t.Fatalf("updateConfig: %+v", resp)
	}

	resp = h.send(t, router.Message{Action: router.ActionGetConfig})
	if resp.HasAPIKey == nil || !*resp.HasAPIKey {
		t.Errorf("hasApiKey: got %+v, want true", resp.HasAPIKey)
	}
	if resp.BaseURL != "http://127.0.0.1:5555" {
		t.Errorf("baseUrl: got %q", resp.BaseURL)
	}
	if resp.Error != "" || resp.FileName != "" {
		t.Errorf("getConfig leaked unrelated fields: %+v", resp)
	}

	cfg, err := h.store.LoadConfiguration(context.Background())
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	if cfg.APIKey != "secret" || cfg.BaseURL != "http://127.0.0.1:5555" {
		t.Errorf("persisted configuration: got %+v", cfg)
	}
}

func TestUpdateConfig_DefaultBaseURL(t *testing.T) {
	h := start(t, nil)
	h.send(t, router.Message{Action: router.ActionUpdateConfig, APIKey: "k"})

	resp := h.send(t, router.Message{Action: router.ActionGetConfig})
	if resp.BaseURL != types.DefaultBaseURL {
		t.Errorf("baseUrl: got %q, want %q", resp.BaseURL, types.DefaultBaseURL)
	}
}

func TestInit_PrefersStaticConfig(t *testing.T) {
	h := start(t, &types.Configuration{APIKey: "static", BaseURL: "http://static:1"})
	resp := h.send(t, router.Message{Action: router.ActionGetConfig})
	if resp.BaseURL != "http://static:1" {
		t.Errorf("baseUrl: got %q, want static config", resp.BaseURL)
	}
}

func TestTestConnection_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	h := start(t, &types.Configuration{APIKey: "k", BaseURL: "http://" + addr})
	resp := h.send(t, router.Message{Action: router.ActionTestConnection})
	if resp.Success {
		t.Error("testConnection: got success for unreachable service")
	}
}

// A hanging save must not block configuration requests.
func TestSlowSaveDoesNotBlockLoop(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	h := start(t, &types.Configuration{BaseURL: srv.URL, APIKey: "k"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.router.Send(ctx, router.Message{Action: router.ActionSaveTweet, TweetData: janeDoe()})

	getCtx, getCancel := context.WithTimeout(context.Background(), time.Second)
	defer getCancel()
	if _, err := h.router.Send(getCtx, router.Message{Action: router.ActionGetConfig}); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			t.Fatal("getConfig blocked behind a pending save")
		}
		t.Fatalf("getConfig: %v", err)
	}
}

func TestGetStatus_RecordsLastProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := start(t, &types.Configuration{BaseURL: srv.URL, APIKey: "k"})

	resp := h.send(t, router.Message{Action: router.ActionGetStatus})
	if resp.Connected != nil {
		t.Fatalf("before any probe: got connected=%v", *resp.Connected)
	}

	if resp := h.send(t, router.Message{Action: router.ActionTestConnection}); !resp.Success {
		t.Fatalf("testConnection: %+v", resp)
	}

	// The probe result reaches the loop after the reply.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp = h.send(t, router.Message{Action: router.ActionGetStatus})
		if resp.Connected != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if resp.Connected == nil || !*resp.Connected {
		t.Fatalf("getStatus: got %+v, want connected=true", resp)
	}
	if resp.CheckedAt == "" {
		t.Error("checkedAt not set")
	}
}
