package page

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/chromedp/cdproto/cdp"
)

// fakeNode is an element in fakeDoc.
type fakeNode struct {
	id       cdp.NodeID
	tag      string
	attrs    map[string]string
	parent   *fakeNode
	children []*fakeNode
	hidden   bool
}

func (n *fakeNode) classes() []string {
	return strings.Fields(n.attrs["class"])
}

// fakeDoc is an in-memory Document understanding the small selector subset
// used by the injector: tag, [attr="v"], .class and descendant combinators.
type fakeDoc struct {
	root     *fakeNode
	nodes    map[cdp.NodeID]*fakeNode
	location string
	nextID   cdp.NodeID
	inserts  int
	// detail flag of every InsertControl call, in order
	insertLog []bool
}

func newFakeDoc(location string) *fakeDoc {
	d := &fakeDoc{nodes: make(map[cdp.NodeID]*fakeNode), location: location}
	d.root = d.newNode("#document", nil)
	return d
}

func (d *fakeDoc) newNode(tag string, attrs map[string]string) *fakeNode {
	d.nextID++
	if attrs == nil {
		attrs = map[string]string{}
	}
	n := &fakeNode{id: d.nextID, tag: tag, attrs: attrs}
	d.nodes[n.id] = n
	return n
}

// add appends a new element under parent and returns it.
func (d *fakeDoc) add(parent *fakeNode, tag string, attrs ...string) *fakeNode {
	m := map[string]string{}
	for i := 0; i+1 < len(attrs); i += 2 {
		m[attrs[i]] = attrs[i+1]
	}
	n := d.newNode(tag, m)
	n.parent = parent
	parent.children = append(parent.children, n)
	return n
}

// remove detaches n and forgets its subtree, as when the page re-renders.
func (d *fakeDoc) remove(n *fakeNode) {
	if p := n.parent; p != nil {
		for i, c := range p.children {
			if c == n {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	var forget func(*fakeNode)
	forget = func(x *fakeNode) {
		delete(d.nodes, x.id)
		for _, c := range x.children {
			forget(c)
		}
	}
	forget(n)
}

func (d *fakeDoc) node(id cdp.NodeID) (*fakeNode, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("could not find node with given id %d", id)
	}
	return n, nil
}

// count returns how many elements in the document match sel.
func (d *fakeDoc) count(sel string) int {
	return len(d.all(d.root, sel))
}

func (d *fakeDoc) all(scope *fakeNode, sel string) []*fakeNode {
	var out []*fakeNode
	var walk func(*fakeNode)
	walk = func(n *fakeNode) {
		for _, c := range n.children {
			if matches(c, sel) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(scope)
	return out
}

func (d *fakeDoc) Root(ctx context.Context) (cdp.NodeID, error) {
	return d.root.id, nil
}

func (d *fakeDoc) Location(ctx context.Context) (string, error) {
	return d.location, nil
}

func (d *fakeDoc) QuerySelector(ctx context.Context, scope cdp.NodeID, sel string) (cdp.NodeID, error) {
	n, err := d.node(scope)
	if err != nil {
		return 0, err
	}
	if found := d.all(n, sel); len(found) > 0 {
		return found[0].id, nil
	}
	return 0, nil
}

func (d *fakeDoc) QuerySelectorAll(ctx context.Context, scope cdp.NodeID, sel string) ([]cdp.NodeID, error) {
	n, err := d.node(scope)
	if err != nil {
		return nil, err
	}
	var ids []cdp.NodeID
	for _, f := range d.all(n, sel) {
		ids = append(ids, f.id)
	}
	return ids, nil
}

func (d *fakeDoc) Matches(ctx context.Context, id cdp.NodeID, sel string) (bool, error) {
	n, err := d.node(id)
	if err != nil {
		return false, err
	}
	return n != d.root && matches(n, sel), nil
}

func (d *fakeDoc) Parent(ctx context.Context, id cdp.NodeID) (cdp.NodeID, error) {
	n, err := d.node(id)
	if err != nil {
		return 0, err
	}
	if n.parent == nil || n.parent == d.root {
		return 0, nil
	}
	return n.parent.id, nil
}

func (d *fakeDoc) Identity(ctx context.Context, id cdp.NodeID) (cdp.BackendNodeID, error) {
	if _, err := d.node(id); err != nil {
		return 0, err
	}
	return cdp.BackendNodeID(1000 + id), nil
}

func (d *fakeDoc) Hide(ctx context.Context, id cdp.NodeID) error {
	n, err := d.node(id)
	if err != nil {
		return err
	}
	n.hidden = true
	return nil
}

func (d *fakeDoc) InsertControl(ctx context.Context, container, after cdp.NodeID, detail bool) error {
	c, err := d.node(container)
	if err != nil {
		return err
	}
	ctrl := d.newNode("div", map[string]string{"class": SaveControlClass})
	ctrl.parent = c
	d.inserts++
	d.insertLog = append(d.insertLog, detail)

	if after != 0 {
		for i, child := range c.children {
			if child.id == after {
				rest := append([]*fakeNode{ctrl}, c.children[i+1:]...)
				c.children = append(c.children[:i+1], rest...)
				return nil
			}
		}
	}
	c.children = append(c.children, ctrl)
	return nil
}

// indexOf returns the position of child among parent's children, or -1.
func indexOf(parent *fakeNode, child cdp.NodeID) int {
	for i, c := range parent.children {
		if c.id == child {
			return i
		}
	}
	return -1
}

var simpleAttr = regexp.MustCompile(`\[([a-z-]+)="([^"]*)"\]`)

// matches supports comma-separated lists of descendant selectors.
func matches(n *fakeNode, sel string) bool {
	for _, alt := range strings.Split(sel, ",") {
		parts := strings.Fields(alt)
		if len(parts) > 0 && matchChain(n, parts) {
			return true
		}
	}
	return false
}

func matchChain(n *fakeNode, parts []string) bool {
	last := len(parts) - 1
	if !matchCompound(n, parts[last]) {
		return false
	}
	if last == 0 {
		return true
	}
	for a := n.parent; a != nil; a = a.parent {
		if matchChain(a, parts[:last]) {
			return true
		}
	}
	return false
}

func matchCompound(n *fakeNode, sel string) bool {
	if n.tag == "#document" {
		return false
	}
	for _, m := range simpleAttr.FindAllStringSubmatch(sel, -1) {
		if v, ok := n.attrs[m[1]]; !ok || v != m[2] {
			return false
		}
	}
	rest := simpleAttr.ReplaceAllString(sel, "")

	tag, classes, _ := strings.Cut(rest, ".")
	if tag != "" && tag != n.tag {
		return false
	}
	if classes == "" {
		return true
	}
	have := n.classes()
	for _, want := range strings.Split(classes, ".") {
		found := false
		for _, c := range have {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// addCard builds a post card with the requested action bar controls and
// returns the article and its action bar.
func (d *fakeDoc) addCard(parent *fakeNode, permalink string, controls ...string) (*fakeNode, *fakeNode) {
	article := d.add(parent, "article", "data-testid", "tweet")
	d.add(article, "div", "data-testid", "User-Name")
	link := d.add(article, "a", "href", permalink)
	d.add(link, "time", "datetime", "2024-01-01T00:00:00.000Z")
	group := d.add(article, "div", "role", "group")
	for _, c := range controls {
		wrap := d.add(group, "div")
		d.add(wrap, "button", "data-testid", c)
	}
	return article, group
}
