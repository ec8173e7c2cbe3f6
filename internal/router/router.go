// Package router relays action-tagged requests between the page session,
// the background coordinator and the settings popup. Components never share
// memory; each one owns an inbox channel and registers the actions it
// serves.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// Action names a request type.
type Action string

const (
	ActionSaveTweet             Action = "saveTweet"
	ActionTestConnection        Action = "testConnection"
	ActionUpdateConfig          Action = "updateConfig"
	ActionGetConfig             Action = "getConfig"
	ActionSaveTweetFromShortcut Action = "saveTweetFromShortcut"
	ActionSaveTweetFromContext  Action = "saveTweetFromContext"
	ActionGetPageInfo           Action = "getPageInfo"
	ActionGetStatus             Action = "getStatus"
)

// ErrNotInitialized is reported for data-carrying actions while no storage
// client exists.
var ErrNotInitialized = errors.New("API not initialized. Please configure your API key.")

// ErrNoHandler is returned when nothing serves an action.
var ErrNoHandler = errors.New("no handler for action")

// Message is one request.
type Message struct {
	ID        string            `json:"id,omitempty"`
	Action    Action            `json:"action"`
	TweetData *types.PostRecord `json:"tweetData,omitempty"`
	BaseName  string            `json:"baseName,omitempty"`
	APIKey    string            `json:"apiKey,omitempty"`
	BaseURL   string            `json:"baseUrl,omitempty"`
}

// Response answers a Message. ID echoes the request id.
type Response struct {
	ID        string `json:"id,omitempty"`
	Success   bool   `json:"success"`
	FileName  string `json:"fileName,omitempty"`
	Error     string `json:"error,omitempty"`
	HasAPIKey *bool  `json:"hasApiKey,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty"`
	PageURL   string `json:"pageUrl,omitempty"`
	Connected *bool  `json:"connected,omitempty"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

// Failure builds an unsuccessful response from err.
func Failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// Envelope carries a Message to its handler together with a single-use
// reply slot.
type Envelope struct {
	Message
	reply chan Response
	once  sync.Once
}

// Reply answers the request. Only the first call has an effect; replies to
// fire-and-forget messages are discarded.
func (e *Envelope) Reply(r Response) {
	e.once.Do(func() {
		if e.reply != nil {
			e.reply <- r
		}
	})
}

// DefaultTimeout bounds a Send or Notify whose context has no deadline.
const DefaultTimeout = 30 * time.Second

// Router maps actions to handler inboxes
type Router struct {
	mu      sync.RWMutex
	routes  map[Action]chan<- *Envelope
	timeout time.Duration
	logger  *log.Logger
}

// New creates an empty router
func New(logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		routes:  make(map[Action]chan<- *Envelope),
		timeout: DefaultTimeout,
		logger:  logger,
	}
}

// SetTimeout replaces DefaultTimeout. Zero disables the bound.
func (r *Router) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// bound applies the router timeout to contexts without a deadline, so a
// stalled or stopped handler always ends in an error.
func (r *Router) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	r.mu.RLock()
	d := r.timeout
	r.mu.RUnlock()
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// Handle routes actions to inbox, replacing any previous handler.
func (r *Router) Handle(inbox chan<- *Envelope, actions ...Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range actions {
		r.routes[a] = inbox
	}
}

// Remove drops the routes for actions, but only while they still point at
// inbox.
func (r *Router) Remove(inbox chan<- *Envelope, actions ...Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range actions {
		if r.routes[a] == inbox {
			delete(r.routes, a)
		}
	}
}

// Send delivers msg and waits for its response. The wait ends when the
// handler replies, ctx is done or the router timeout passes. The response
// carries the request id, generated when msg has none.
func (r *Router) Send(ctx context.Context, msg Message) (Response, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	env, err := r.deliver(ctx, msg, true)
	if err != nil {
		return Response{}, err
	}

	select {
	case resp := <-env.reply:
		if resp.ID == "" {
			resp.ID = env.ID
		}
		r.logger.Debug("response", "id", env.ID, "action", env.Action, "success", resp.Success)
		return resp, nil
	case <-ctx.Done():
		return Response{}, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}

// Notify delivers msg without waiting for a response.
func (r *Router) Notify(ctx context.Context, msg Message) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	_, err := r.deliver(ctx, msg, false)
	return err
}

func (r *Router) deliver(ctx context.Context, msg Message, wantReply bool) (*Envelope, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	r.mu.RLock()
	inbox, ok := r.routes[msg.Action]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("unroutable message", "id", msg.ID, "action", msg.Action)
		return nil, fmt.Errorf("%s: %w", msg.Action, ErrNoHandler)
	}

	env := &Envelope{Message: msg}
	if wantReply {
		env.reply = make(chan Response, 1)
	}

	r.logger.Debug("request", "id", msg.ID, "action", msg.Action)
	select {
	case inbox <- env:
		return env, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}
