package page

import (
	"context"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/cdp"
)

var statusPath = regexp.MustCompile(`/status/\d+`)

// Observer turns inserted DOM nodes into save-control injections. It is not
// safe for concurrent use: the session loop owns it.
type Observer struct {
	doc      Document
	injector *Injector
	logger   *log.Logger

	// schedule arranges for Scan to run on the next frame tick.
	schedule func()

	processed map[cdp.BackendNodeID]struct{}
	pending   map[cdp.NodeID]struct{}
	scheduled bool
}

// NewObserver creates an observer. schedule is called at most once per
// batch of insertions; the caller must invoke Scan when it fires.
func NewObserver(doc Document, injector *Injector, schedule func(), logger *log.Logger) *Observer {
	if logger == nil {
		logger = log.Default()
	}
	return &Observer{
		doc:       doc,
		injector:  injector,
		logger:    logger,
		schedule:  schedule,
		processed: make(map[cdp.BackendNodeID]struct{}),
		pending:   make(map[cdp.NodeID]struct{}),
	}
}

// NodesAdded records newly inserted nodes and schedules a scan unless one
// is already scheduled.
func (o *Observer) NodesAdded(ids ...cdp.NodeID) {
	added := false
	for _, id := range ids {
		if id == 0 {
			continue
		}
		o.pending[id] = struct{}{}
		added = true
	}
	if added && !o.scheduled {
		o.scheduled = true
		o.schedule()
	}
}

// Pending returns the number of nodes awaiting a scan.
func (o *Observer) Pending() int {
	return len(o.pending)
}

// Processed returns the number of decorated post cards.
func (o *Observer) Processed() int {
	return len(o.processed)
}

// Reset forgets all state. Node ids of the previous document are invalid.
func (o *Observer) Reset() {
	o.processed = make(map[cdp.BackendNodeID]struct{})
	o.pending = make(map[cdp.NodeID]struct{})
	o.scheduled = false
}

// ScanDocument checks the whole document, as done once after load.
func (o *Observer) ScanDocument(ctx context.Context) {
	root, err := o.doc.Root(ctx)
	if err != nil {
		o.logger.Debug("no document root", "err", err)
		return
	}
	o.pending[root] = struct{}{}
	o.Scan(ctx)
}

// Scan handles the pending batch: the detail view first, then every post
// card below a pending node. The batch is cleared afterwards.
func (o *Observer) Scan(ctx context.Context) {
	o.scheduled = false

	if o.IsDetailPage(ctx) {
		if _, err := o.injector.InjectDetail(ctx); err != nil {
			o.logger.Debug("detail injection skipped", "err", err)
		}
	}

	batch := o.pending
	o.pending = make(map[cdp.NodeID]struct{})
	for node := range batch {
		o.scanNode(ctx, node)
	}

	if r, ok := o.doc.(interface{ Release(context.Context) }); ok {
		r.Release(ctx)
	}
}

func (o *Observer) scanNode(ctx context.Context, node cdp.NodeID) {
	cards, err := o.doc.QuerySelectorAll(ctx, node, TweetArticle)
	if err != nil {
		// The node was removed between notification and scan.
		o.logger.Debug("scan skipped", "node", node, "err", err)
		return
	}
	if self, err := o.doc.Matches(ctx, node, TweetArticle); err == nil && self {
		cards = append([]cdp.NodeID{node}, cards...)
	}

	for _, card := range cards {
		id, err := o.doc.Identity(ctx, card)
		if err != nil {
			o.logger.Debug("card vanished", "node", card, "err", err)
			continue
		}
		if _, ok := o.processed[id]; ok {
			continue
		}
		done, err := o.injector.InjectCard(ctx, card)
		if err != nil {
			o.logger.Debug("card injection skipped", "node", card, "err", err)
			continue
		}
		// Cards whose action bar has not rendered yet are retried when
		// their subtree changes.
		if done {
			o.processed[id] = struct{}{}
		}
	}
}

// IsDetailPage reports whether the page shows a single post: a /status/<id>
// URL with a rendered post.
func (o *Observer) IsDetailPage(ctx context.Context) bool {
	loc, err := o.doc.Location(ctx)
	if err != nil || !IsStatusURL(loc) {
		return false
	}
	root, err := o.doc.Root(ctx)
	if err != nil {
		return false
	}
	for _, sel := range DetailSelectors {
		if id, err := o.doc.QuerySelector(ctx, root, sel); err == nil && id != 0 {
			return true
		}
	}
	return false
}

// IsStatusURL reports whether u looks like a post permalink.
func IsStatusURL(u string) bool {
	return statusPath.MatchString(u)
}
