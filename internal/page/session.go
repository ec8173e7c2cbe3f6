package page

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/tweetsaver/internal/browser"
	"github.com/ibeckermayer/tweetsaver/internal/router"
	"github.com/ibeckermayer/tweetsaver/internal/store"
	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// bindingName is the page function the save control calls on click.
const bindingName = "__tweetsaverSave"

// DefaultFrameInterval approximates one animation frame.
const DefaultFrameInterval = 16 * time.Millisecond

// Actions lists what a session serves.
var Actions = []router.Action{
	router.ActionSaveTweetFromShortcut,
	router.ActionSaveTweetFromContext,
	router.ActionGetPageInfo,
}

// Settings provides the user's preferred storage group.
type Settings interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Options configures a Session.
type Options struct {
	Headless      bool
	StartURL      string
	FrameInterval time.Duration
	// Cookies are set before the first navigation, typically a stored x.com
	// login.
	Cookies []*network.Cookie
}

// Session drives one browser tab: it observes the timeline, decorates posts
// and turns clicks into save requests.
type Session struct {
	opts     Options
	router   *router.Router
	settings Settings
	logger   *log.Logger
	inbox    chan *router.Envelope
	events   *eventQueue
}

// NewSession creates a session. settings may be nil.
func NewSession(opts Options, r *router.Router, settings Settings, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.StartURL == "" {
		opts.StartURL = "https://x.com/home"
	}
	return &Session{
		opts:     opts,
		router:   r,
		settings: settings,
		logger:   logger,
		inbox:    make(chan *router.Envelope, 8),
		events:   newEventQueue(),
	}
}

// Run opens the browser and serves the tab until ctx is done or the
// browser goes away.
func (s *Session) Run(ctx context.Context) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browser.Options(s.opts.Headless)...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	// Listener callbacks run on chromedp's event goroutine and must not
	// block; everything is forwarded to the loop.
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch ev.(type) {
		case *dom.EventChildNodeInserted, *dom.EventChildNodeCountUpdated,
			*dom.EventDocumentUpdated, *runtime.EventBindingCalled:
			s.events.push(ev)
		}
	})

	if err := chromedp.Run(tabCtx,
		injectCookies(s.opts.Cookies),
		runtime.AddBinding(bindingName),
		dom.Enable(),
		chromedp.Navigate(s.opts.StartURL),
	); err != nil {
		return fmt.Errorf("failed to open %s: %w", s.opts.StartURL, err)
	}

	c := chromedp.FromContext(tabCtx)
	execCtx := cdp.WithExecutor(tabCtx, c.Target)

	s.router.Handle(s.inbox, Actions...)
	defer s.router.Remove(s.inbox, Actions...)

	s.logger.Info("Page session started", "url", s.opts.StartURL)
	s.loop(ctx, execCtx)
	return nil
}

// loop owns the observer. Scans, DOM events and router requests are all
// handled here, one at a time.
func (s *Session) loop(ctx, execCtx context.Context) {
	doc := newCDPDocument()
	injector := NewInjector(doc, s.logger)

	var frameC <-chan time.Time
	obs := NewObserver(doc, injector, func() {
		frameC = time.After(s.opts.FrameInterval)
	}, s.logger)

	s.prepareDocument(execCtx, doc, obs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-execCtx.Done():
			s.logger.Info("Browser closed")
			return

		case <-frameC:
			frameC = nil
			obs.Scan(execCtx)

		case <-s.events.signal:
			for _, ev := range s.events.drain() {
				switch ev := ev.(type) {
				case *dom.EventChildNodeInserted:
					if ev.Node == nil || ev.Node.NodeType != cdp.NodeTypeElement {
						continue
					}
					obs.NodesAdded(ev.Node.NodeID)
				case *dom.EventChildNodeCountUpdated:
					// Children of nodes the browser has not pushed yet arrive
					// only as a count; rescan the parent.
					obs.NodesAdded(ev.NodeID)
				case *dom.EventDocumentUpdated:
					frameC = nil
					s.prepareDocument(execCtx, doc, obs)
				case *runtime.EventBindingCalled:
					if ev.Name != bindingName {
						continue
					}
					go s.save(execCtx, permalinkFromPayload(ev.Payload))
				}
			}

		case env := <-s.inbox:
			s.handle(execCtx, doc, env)
		}
	}
}

// prepareDocument resets all per-document state and scans the fresh tree.
func (s *Session) prepareDocument(ctx context.Context, doc *cdpDocument, obs *Observer) {
	doc.Reset()
	obs.Reset()
	if err := InstallStyles(ctx); err != nil {
		s.logger.Debug("styles not installed", "err", err)
	}
	obs.ScanDocument(ctx)
}

func (s *Session) handle(ctx context.Context, doc *cdpDocument, env *router.Envelope) {
	switch env.Action {
	case router.ActionSaveTweetFromShortcut, router.ActionSaveTweetFromContext:
		loc, err := doc.Location(ctx)
		if err != nil {
			env.Reply(router.Failure(err))
			return
		}
		if !IsXURL(loc) {
			s.logger.Info("Not on x.com, ignoring save request", "url", loc, "source", env.Action)
			env.Reply(router.Response{Success: false, Error: "not on x.com", PageURL: loc})
			return
		}
		s.logger.Info("Saving tweet", "source", env.Action)
		go s.save(ctx, "")
		env.Reply(router.Response{Success: true, PageURL: loc})

	case router.ActionGetPageInfo:
		loc, err := doc.Location(ctx)
		if err != nil {
			env.Reply(router.Failure(err))
			return
		}
		env.Reply(router.Response{Success: true, PageURL: loc})

	default:
		env.Reply(router.Response{Success: false, Error: fmt.Sprintf("unknown action %q", env.Action)})
	}
}

// save extracts the post and hands it to the coordinator, reporting the
// outcome in the page.
func (s *Session) save(ctx context.Context, permalink string) {
	s.status(ctx, "Saving...", StatusLoading)

	rec, err := Extract(ctx, permalink)
	if err != nil {
		s.logger.Error("Extraction failed", "err", err)
		s.status(ctx, "Error: "+err.Error(), StatusError)
		return
	}

	resp, err := s.router.Send(ctx, router.Message{
		Action:    router.ActionSaveTweet,
		TweetData: &rec,
		BaseName:  s.defaultBase(ctx),
	})
	switch {
	case err != nil:
		s.status(ctx, "Error: "+err.Error(), StatusError)
	case resp.Success:
		s.status(ctx, "Saved to Obsidian!", StatusSuccess)
	default:
		s.status(ctx, "Error: "+resp.Error, StatusError)
	}
}

func (s *Session) status(ctx context.Context, message, kind string) {
	if err := ShowStatus(ctx, message, kind); err != nil {
		s.logger.Debug("status toast failed", "err", err)
	}
}

func (s *Session) defaultBase(ctx context.Context) string {
	if s.settings == nil {
		return types.DefaultGroupName
	}
	v, ok, err := s.settings.Get(ctx, store.KeyDefaultBase)
	if err != nil || !ok || v == "" {
		return types.DefaultGroupName
	}
	return v
}

// permalinkFromPayload decodes the binding payload {"url": "..."}.
func permalinkFromPayload(payload string) string {
	var p struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return ""
	}
	return p.URL
}

// IsXURL reports whether u belongs to x.com or twitter.com.
func IsXURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range []string{"x.com", "twitter.com"} {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// injectCookies sets cookies in the browser context
func injectCookies(cookies []*network.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// eventQueue is an unbounded FIFO between the CDP event goroutine and the
// session loop.
type eventQueue struct {
	mu     sync.Mutex
	items  []interface{}
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev interface{}) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
