package page

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/cdp"
)

// Injector places exactly one save control in a post's action bar.
type Injector struct {
	doc    Document
	logger *log.Logger
}

// NewInjector creates an injector working on doc
func NewInjector(doc Document, logger *log.Logger) *Injector {
	if logger == nil {
		logger = log.Default()
	}
	return &Injector{doc: doc, logger: logger}
}

// placement is one candidate position for the control.
type placement struct {
	name      string
	container cdp.NodeID
	after     cdp.NodeID
}

// InjectCard decorates one post card. It reports whether the card now has a
// control (inserted now or already present); a card without an action bar
// yields false and no error.
func (in *Injector) InjectCard(ctx context.Context, card cdp.NodeID) (bool, error) {
	actionBar, err := in.doc.QuerySelector(ctx, card, ActionBar)
	if err != nil {
		return false, err
	}
	if actionBar == 0 {
		return false, nil
	}

	bookmark, err := in.doc.QuerySelector(ctx, card, BookmarkButton)
	if err != nil {
		return false, err
	}
	if bookmark != 0 {
		if err := in.doc.Hide(ctx, bookmark); err != nil {
			in.logger.Debug("hide bookmark failed", "err", err)
		}
	}

	has, err := in.hasControl(ctx, actionBar)
	if err != nil || has {
		return has, err
	}

	candidates, err := in.placements(ctx, card, actionBar, bookmark)
	if err != nil {
		return false, err
	}
	return in.insertFirst(ctx, candidates, false)
}

// InjectDetail decorates the page-level action bar of a post detail view.
func (in *Injector) InjectDetail(ctx context.Context) (bool, error) {
	root, err := in.doc.Root(ctx)
	if err != nil {
		return false, err
	}

	bookmark, err := in.doc.QuerySelector(ctx, root, BookmarkButton)
	if err != nil {
		return false, err
	}
	if bookmark != 0 {
		if err := in.doc.Hide(ctx, bookmark); err != nil {
			in.logger.Debug("hide bookmark failed", "err", err)
		}
	}

	actionBar, err := in.doc.QuerySelector(ctx, root, ActionBar)
	if err != nil {
		return false, err
	}
	if actionBar != 0 {
		has, err := in.hasControl(ctx, actionBar)
		if err != nil || has {
			return has, err
		}
	}

	candidates, err := in.placements(ctx, root, actionBar, bookmark)
	if err != nil {
		return false, err
	}
	return in.insertFirst(ctx, candidates, true)
}

// placements lists, in order of preference: after the bookmark control,
// after the share control, appended to the action bar, appended to the
// reply button's parent.
func (in *Injector) placements(ctx context.Context, scope, actionBar, bookmark cdp.NodeID) ([]placement, error) {
	var out []placement

	if bookmark != 0 {
		parent, err := in.doc.Parent(ctx, bookmark)
		if err != nil {
			return nil, err
		}
		if parent != 0 {
			out = append(out, placement{"bookmark", parent, bookmark})
		}
	}

	share, err := in.doc.QuerySelector(ctx, scope, ShareButton)
	if err != nil {
		return nil, err
	}
	if share != 0 {
		parent, err := in.doc.Parent(ctx, share)
		if err != nil {
			return nil, err
		}
		if parent != 0 {
			out = append(out, placement{"share", parent, share})
		}
	}

	if actionBar != 0 {
		out = append(out, placement{"action bar", actionBar, 0})
	}

	reply, err := in.doc.QuerySelector(ctx, scope, ReplyButton)
	if err != nil {
		return nil, err
	}
	if reply != 0 {
		parent, err := in.doc.Parent(ctx, reply)
		if err != nil {
			return nil, err
		}
		if parent != 0 {
			out = append(out, placement{"reply", parent, 0})
		}
	}

	return out, nil
}

// insertFirst tries each placement in turn. A container that already holds
// a control counts as success.
func (in *Injector) insertFirst(ctx context.Context, candidates []placement, detail bool) (bool, error) {
	var lastErr error
	for _, p := range candidates {
		has, err := in.hasControl(ctx, p.container)
		if err != nil {
			lastErr = err
			continue
		}
		if has {
			return true, nil
		}
		if err := in.doc.InsertControl(ctx, p.container, p.after, detail); err != nil {
			lastErr = fmt.Errorf("insert %s: %w", p.name, err)
			continue
		}
		in.logger.Debug("save control inserted", "position", p.name, "detail", detail)
		return true, nil
	}
	return false, lastErr
}

func (in *Injector) hasControl(ctx context.Context, container cdp.NodeID) (bool, error) {
	id, err := in.doc.QuerySelector(ctx, container, SaveControl)
	if err != nil {
		return false, err
	}
	return id != 0, nil
}
