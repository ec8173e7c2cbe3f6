package page

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
)

// Document is the live page as seen by the observer and injector. Node ids
// may go stale at any time because the page keeps rendering; methods
// return an error for a vanished node and callers skip it.
type Document interface {
	// Root returns the document node.
	Root(ctx context.Context) (cdp.NodeID, error)
	// Location returns the page URL.
	Location(ctx context.Context) (string, error)
	// QuerySelector returns the first descendant of scope matching sel, or
	// 0 when there is none.
	QuerySelector(ctx context.Context, scope cdp.NodeID, sel string) (cdp.NodeID, error)
	// Matches reports whether node itself matches sel.
	Matches(ctx context.Context, node cdp.NodeID, sel string) (bool, error)
	// QuerySelectorAll returns every descendant of scope matching sel.
	QuerySelectorAll(ctx context.Context, scope cdp.NodeID, sel string) ([]cdp.NodeID, error)
	// Parent returns the parent element of node, or 0.
	Parent(ctx context.Context, node cdp.NodeID) (cdp.NodeID, error)
	// Identity returns an id for node that stays stable for the lifetime
	// of the document.
	Identity(ctx context.Context, node cdp.NodeID) (cdp.BackendNodeID, error)
	// Hide sets display:none on node without removing it.
	Hide(ctx context.Context, node cdp.NodeID) error
	// InsertControl inserts a save control into container right after the
	// child after, or appends it when after is 0.
	InsertControl(ctx context.Context, container, after cdp.NodeID, detail bool) error
}
