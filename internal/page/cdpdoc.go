package page

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// objectGroup holds every remote object created while scanning, released
// after each scan.
const objectGroup = "tweetsaver"

// cdpDocument implements Document over the Chrome DevTools Protocol. The
// context passed to its methods must carry a chromedp executor.
type cdpDocument struct {
	root cdp.NodeID
}

func newCDPDocument() *cdpDocument {
	return &cdpDocument{}
}

// Reset drops the cached root after the document was replaced.
func (d *cdpDocument) Reset() {
	d.root = 0
}

// Root requests the full tree (depth -1, piercing shadow roots) so that the
// DOM domain reports insertions anywhere in it.
func (d *cdpDocument) Root(ctx context.Context) (cdp.NodeID, error) {
	if d.root != 0 {
		return d.root, nil
	}
	node, err := dom.GetDocument().WithDepth(-1).WithPierce(true).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("DOM.getDocument: %w", err)
	}
	d.root = node.NodeID
	return d.root, nil
}

func (d *cdpDocument) Location(ctx context.Context) (string, error) {
	var u string
	if err := chromedp.Location(&u).Do(ctx); err != nil {
		return "", err
	}
	return u, nil
}

func (d *cdpDocument) QuerySelector(ctx context.Context, scope cdp.NodeID, sel string) (cdp.NodeID, error) {
	return dom.QuerySelector(scope, sel).Do(ctx)
}

func (d *cdpDocument) QuerySelectorAll(ctx context.Context, scope cdp.NodeID, sel string) ([]cdp.NodeID, error) {
	return dom.QuerySelectorAll(scope, sel).Do(ctx)
}

func (d *cdpDocument) Matches(ctx context.Context, node cdp.NodeID, sel string) (bool, error) {
	res, err := d.call(ctx, node, fmt.Sprintf(`function() { return this.nodeType === 1 && this.matches(%q); }`, sel))
	if err != nil {
		return false, err
	}
	return res != nil && string(res.Value) == "true", nil
}

func (d *cdpDocument) Identity(ctx context.Context, node cdp.NodeID) (cdp.BackendNodeID, error) {
	n, err := dom.DescribeNode().WithNodeID(node).Do(ctx)
	if err != nil {
		return 0, err
	}
	return n.BackendNodeID, nil
}

func (d *cdpDocument) Parent(ctx context.Context, node cdp.NodeID) (cdp.NodeID, error) {
	res, err := d.call(ctx, node, `function() { return this.parentElement; }`)
	if err != nil {
		return 0, err
	}
	if res == nil || res.ObjectID == "" {
		return 0, nil
	}
	return dom.RequestNode(res.ObjectID).Do(ctx)
}

func (d *cdpDocument) Hide(ctx context.Context, node cdp.NodeID) error {
	_, err := d.call(ctx, node, `function() { this.style.display = 'none'; }`)
	return err
}

func (d *cdpDocument) InsertControl(ctx context.Context, container, after cdp.NodeID, detail bool) error {
	var args []*runtime.CallArgument
	if after != 0 {
		obj, err := dom.ResolveNode().WithNodeID(after).WithObjectGroup(objectGroup).Do(ctx)
		if err != nil {
			return err
		}
		args = append(args, &runtime.CallArgument{ObjectID: obj.ObjectID})
	}
	_, err := d.call(ctx, container, fmt.Sprintf(insertControlJS, bindingName, SaveControlClass, detail), args...)
	return err
}

// Release frees the remote objects created since the last call.
func (d *cdpDocument) Release(ctx context.Context) {
	runtime.ReleaseObjectGroup(objectGroup).Do(ctx)
}

// call runs fn with this bound to node.
func (d *cdpDocument) call(ctx context.Context, node cdp.NodeID, fn string, args ...*runtime.CallArgument) (*runtime.RemoteObject, error) {
	obj, err := dom.ResolveNode().WithNodeID(node).WithObjectGroup(objectGroup).Do(ctx)
	if err != nil {
		return nil, err
	}
	params := runtime.CallFunctionOn(fn).
		WithObjectID(obj.ObjectID).
		WithObjectGroup(objectGroup)
	if len(args) > 0 {
		params = params.WithArguments(args)
	}
	res, exc, err := params.Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, exc
	}
	return res, nil
}

// insertControlJS builds the save control. Format verbs: binding name,
// marker class, detail flag. The click reports the post's permalink (empty
// on a detail page) through the binding and lights the indicator dot for a
// second whatever the outcome of the save.
const insertControlJS = `function(after) {
	const binding = %[1]q;
	const detail = %[3]t;
	const button = document.createElement('div');
	button.className = %[2]q + (detail ? ' obsidian-detail' : '');
	button.setAttribute('title', 'Save to Obsidian');

	const inner = document.createElement('div');
	inner.setAttribute('role', 'button');
	inner.setAttribute('tabindex', '0');
	inner.style.cssText = 'display:flex;align-items:center;justify-content:center;width:36px;height:36px;' +
		'border-radius:18px;cursor:pointer;transition:all 0.2s ease;color:rgb(113,118,123);position:relative;margin:0 4px;';
	inner.innerHTML = '<svg width="24" height="24" viewBox="0 0 512 512" fill="currentColor" xmlns="http://www.w3.org/2000/svg">' +
		'<rect fill="#252323" width="512" height="512" rx="100"/>' +
		'<path d="M359.9 434.3c-2.6 19.1-21.3 34-40 28.9-26.4-7.3-57-18.7-84.7-20.8l-42.3-3.2a27.9 27.9 0 0 1-18-8.4l-73-75a27.9 27.9 0 0 1-5.4-31s45.1-99 46.8-104.2c1.7-5.1 7.8-50 11.4-74.2a28 28 0 0 1 9-16.6l86.2-77.5a28 28 0 0 1 40.6 3.5l72.5 92a29.7 29.7 0 0 1 6.2 18.3c0 17.4 1.5 53.2 11.1 76.3a303 303 0 0 0 35.6 58.5 14 14 0 0 1 1.1 15.7c-6.4 10.8-18.9 31.4-36.7 57.9a143.3 143.3 0 0 0-20.4 59.8Z" fill="#8adb8f"/>' +
		'</svg>';

	const indicator = document.createElement('div');
	indicator.className = 'obsidian-indicator';
	indicator.style.cssText = 'position:absolute;top:-2px;right:-2px;width:8px;height:8px;background:#6366f1;' +
		'border-radius:50%%;opacity:0;transition:opacity 0.2s ease;';
	inner.appendChild(indicator);
	button.appendChild(inner);

	inner.addEventListener('mouseover', () => {
		inner.style.backgroundColor = 'rgba(99, 102, 241, 0.1)';
		inner.style.color = 'rgb(99, 102, 241)';
	});
	inner.addEventListener('mouseout', () => {
		inner.style.backgroundColor = 'transparent';
		inner.style.color = 'rgb(113, 118, 123)';
	});

	button.addEventListener('click', (e) => {
		e.preventDefault();
		e.stopPropagation();
		let url = '';
		if (!detail) {
			const article = button.closest('article');
			const time = article && article.querySelector('time');
			const link = time && time.closest('a');
			if (link) url = link.href;
		}
		if (typeof window[binding] === 'function') {
			window[binding](JSON.stringify({ url: url }));
		}
		indicator.style.opacity = '1';
		setTimeout(() => { indicator.style.opacity = '0'; }, 1000);
	});

	if (after && after.parentNode === this) {
		this.insertBefore(button, after.nextSibling);
	} else {
		this.appendChild(button);
	}
}`
