// Package popup serves the local settings page: API key and base URL, a
// connection test, the target base and a readout of the attached page.
package popup

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ibeckermayer/tweetsaver/internal/page"
	"github.com/ibeckermayer/tweetsaver/internal/router"
	"github.com/ibeckermayer/tweetsaver/internal/store"
	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// DefaultAddr is where the settings page listens.
const DefaultAddr = "127.0.0.1:27124"

// Bases offered in the base selector. Discovery is not supported by the
// note service, so only the default exists.
var Bases = []string{types.DefaultGroupName}

// requestTimeout bounds each router round trip made for a page request.
const requestTimeout = 10 * time.Second

//go:embed popup.html
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "popup.html"))

// Settings is the part of the settings store the page edits directly.
type Settings interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SaveDefaultBase(ctx context.Context, name string) error
}

// Server is the settings page. It talks to the rest of the application only
// through the router.
type Server struct {
	addr      string
	router    *router.Router
	settings  Settings
	previewer *Previewer
	logger    *log.Logger
	handler   http.Handler
}

// New creates the settings server.
func New(addr string, r *router.Router, settings Settings, logger *log.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{addr: addr, router: r, settings: settings, logger: logger}
	s.handler = s.routes()
	return s
}

// EnablePreview serves /preview, a rendering of the note a save would write.
func (s *Server) EnablePreview(p *Previewer) {
	s.previewer = p
}

// URL is the address of the settings page.
func (s *Server) URL() string {
	return "http://" + s.addr + "/"
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleIndex)
	r.Get("/preview", s.handlePreview)
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleGetConfig)
		r.Post("/config", s.handleUpdateConfig)
		r.Post("/base", s.handleSetBase)
		r.Post("/test", s.handleTest)
		r.Get("/status", s.handleStatus)
		r.Post("/save", s.handleSave)
	})
	return r
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Settings page listening", "url", s.URL())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown", "err", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"dur", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

// send performs one router round trip bounded by requestTimeout.
func (s *Server) send(r *http.Request, msg router.Message) (router.Response, error) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	return s.router.Send(ctx, msg)
}

// configView is the settings state shown by the page.
type configView struct {
	Success     bool     `json:"success"`
	HasAPIKey   bool     `json:"hasApiKey"`
	BaseURL     string   `json:"baseUrl"`
	DefaultBase string   `json:"defaultBase"`
	Bases       []string `json:"bases"`
}

func (s *Server) loadConfig(r *http.Request) (configView, error) {
	resp, err := s.send(r, router.Message{Action: router.ActionGetConfig})
	if err != nil {
		return configView{}, err
	}
	if !resp.Success {
		return configView{}, errors.New(resp.Error)
	}

	v := configView{
		Success:     true,
		HasAPIKey:   resp.HasAPIKey != nil && *resp.HasAPIKey,
		BaseURL:     resp.BaseURL,
		DefaultBase: types.DefaultGroupName,
		Bases:       Bases,
	}
	if v.BaseURL == "" {
		v.BaseURL = types.DefaultBaseURL
	}
	if base, ok, err := s.settings.Get(r.Context(), store.KeyDefaultBase); err == nil && ok && base != "" {
		v.DefaultBase = base
	}
	return v, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	v, err := s.loadConfig(r)
	if err != nil {
		s.logger.Warn("settings unavailable", "err", err)
		v = configView{BaseURL: types.DefaultBaseURL, DefaultBase: types.DefaultGroupName, Bases: Bases}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, v); err != nil {
		s.logger.Error("render settings page", "err", err)
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	v, err := s.loadConfig(r)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16*1024)

	var req struct {
		APIKey  string `json:"apiKey"`
		BaseURL string `json:"baseUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.BaseURL = strings.TrimSpace(req.BaseURL)
	if req.APIKey == "" {
		jsonErr(w, "Please enter an API key", http.StatusBadRequest)
		return
	}
	if req.BaseURL == "" {
		req.BaseURL = types.DefaultBaseURL
	}

	resp, err := s.send(r, router.Message{
		Action:  router.ActionUpdateConfig,
		APIKey:  req.APIKey,
		BaseURL: req.BaseURL,
	})
	if err != nil {
		jsonErr(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetBase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4*1024)

	var req struct {
		DefaultBase string `json:"defaultBase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	base := strings.TrimSpace(req.DefaultBase)
	if base == "" {
		base = types.DefaultGroupName
	}
	if err := s.settings.SaveDefaultBase(r.Context(), base); err != nil {
		s.logger.Error("Error saving settings", "err", err)
		jsonErr(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "defaultBase": base})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	resp, err := s.send(r, router.Message{Action: router.ActionTestConnection})
	if err != nil {
		jsonErr(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusView describes the attached page and the last connectivity probe.
type statusView struct {
	Success   bool   `json:"success"`
	Attached  bool   `json:"attached"`
	PageURL   string `json:"pageUrl,omitempty"`
	OnX       bool   `json:"onX"`
	Connected *bool  `json:"connected,omitempty"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	v := statusView{Success: true}

	info, err := s.send(r, router.Message{Action: router.ActionGetPageInfo})
	switch {
	case errors.Is(err, router.ErrNoHandler):
	case err != nil:
		s.logger.Debug("page info unavailable", "err", err)
	case info.Success:
		v.Attached = true
		v.PageURL = info.PageURL
		v.OnX = page.IsXURL(info.PageURL)
	}

	if st, err := s.send(r, router.Message{Action: router.ActionGetStatus}); err == nil {
		v.Connected = st.Connected
		v.CheckedAt = st.CheckedAt
	}

	writeJSON(w, http.StatusOK, v)
}

// Save sources accepted by /api/save.
const (
	SourceShortcut = "shortcut"
	SourceContext  = "context"
)

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	action := router.ActionSaveTweetFromShortcut
	switch src := r.URL.Query().Get("source"); src {
	case "", SourceShortcut:
	case SourceContext:
		action = router.ActionSaveTweetFromContext
	default:
		jsonErr(w, "unknown source "+src, http.StatusBadRequest)
		return
	}

	resp, err := s.send(r, router.Message{Action: action})
	if errors.Is(err, router.ErrNoHandler) {
		jsonErr(w, "no page session attached", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		jsonErr(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, router.Response{Success: false, Error: msg})
}
