// Package catalog holds the read-only tree of topics the bot navigates.
//
// A Catalog is built once from a Definition and never mutated, so it can be
// shared by any number of request goroutines without locking.
package catalog

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// IntegrityError lists every authoring problem found while building a catalog.
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("catalog integrity: %d problem(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Catalog is an immutable, validated topic tree.
type Catalog struct {
	entry    string
	fallback string
	menu     []MenuItem
	nodes    map[string]Node
	order    []string
}

// New validates def and builds a catalog from it. All problems are reported
// together in an *IntegrityError.
func New(def Definition) (*Catalog, error) {
	c := &Catalog{
		entry:    def.Entry,
		fallback: def.Fallback,
		menu:     slices.Clone(def.PersistentMenu),
		nodes:    make(map[string]Node, len(def.Nodes)),
		order:    make([]string, 0, len(def.Nodes)),
	}

	var problems []string
	for i, n := range def.Nodes {
		if n.ID == "" {
			problems = append(problems, fmt.Sprintf("node #%d has no id", i))
			continue
		}
		if _, dup := c.nodes[n.ID]; dup {
			problems = append(problems, fmt.Sprintf("node %q is defined more than once", n.ID))
			continue
		}
		n.Children = slices.Clone(n.Children)
		for j := range n.Children {
			if n.Children[j].Label == "" {
				n.Children[j].Label = DefaultLabel
			}
		}
		c.nodes[n.ID] = n
		c.order = append(c.order, n.ID)
	}

	problems = append(problems, c.validate()...)
	if len(problems) > 0 {
		return nil, &IntegrityError{Problems: problems}
	}
	return c, nil
}

// validate walks every node and collects problems in definition order.
func (c *Catalog) validate() []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, id := range c.order {
		n := c.nodes[id]
		if runeLen(n.Title) > MaxTitleLength {
			add("node %q title exceeds %d characters", id, MaxTitleLength)
		}
		if runeLen(n.Subtitle) > MaxTitleLength {
			add("node %q subtitle exceeds %d characters", id, MaxTitleLength)
		}

		switch n.Kind {
		case KindMenu:
			switch {
			case len(n.Children) == 0:
				add("menu %q has no children", id)
			case len(n.Children) > MaxButtons:
				add("menu %q has %d children, limit is %d", id, len(n.Children), MaxButtons)
			}
			if n.Body != "" {
				add("menu %q must not carry a body", id)
			}
			for i, ch := range n.Children {
				if runeLen(ch.Label) > MaxLabelLength {
					add("menu %q child #%d label exceeds %d characters", id, i, MaxLabelLength)
				}
				target, ok := c.nodes[ch.Target]
				if !ok {
					add("menu %q child #%d targets unknown node %q", id, i, ch.Target)
					continue
				}
				if target.Title == "" {
					add("node %q is listed by menu %q but has no title", ch.Target, id)
				}
			}
		case KindLeaf:
			if len(n.Children) > 0 {
				add("leaf %q must not have children", id)
			}
			if strings.TrimSpace(n.Body) == "" {
				add("leaf %q has an empty body", id)
			}
			if runeLen(n.Body) > MaxTextLength {
				add("leaf %q body exceeds %d characters", id, MaxTextLength)
			}
		default:
			add("node %q has unknown kind %q", id, n.Kind)
		}
	}

	if _, ok := c.nodes[c.entry]; c.entry == "" {
		add("no entry point defined")
	} else if !ok {
		add("entry point %q is not a node", c.entry)
	}

	switch fb, ok := c.nodes[c.fallback]; {
	case c.fallback == "":
		add("no fallback defined")
	case !ok:
		add("fallback %q is not a node", c.fallback)
	case !fb.IsLeaf():
		add("fallback %q must be a leaf", c.fallback)
	}

	if len(c.menu) > MaxMenuItems {
		add("persistent menu has %d items, limit is %d", len(c.menu), MaxMenuItems)
	}
	for i, item := range c.menu {
		if item.Title == "" {
			add("persistent menu item #%d has no title", i)
		}
		if runeLen(item.Title) > MaxMenuItemLength {
			add("persistent menu item #%d title exceeds %d characters", i, MaxMenuItemLength)
		}
		if _, ok := c.nodes[item.Target]; !ok {
			add("persistent menu item #%d targets unknown node %q", i, item.Target)
		}
	}
	return problems
}

// Lookup returns the node with the given id.
func (c *Catalog) Lookup(id string) (Node, bool) {
	n, ok := c.nodes[id]
	if !ok {
		return Node{}, false
	}
	n.Children = slices.Clone(n.Children)
	return n, true
}

// Entry returns the entry-point node.
func (c *Catalog) Entry() Node {
	n, _ := c.Lookup(c.entry)
	return n
}

// Fallback returns the leaf shown for selectors the catalog does not know.
func (c *Catalog) Fallback() Node {
	n, _ := c.Lookup(c.fallback)
	return n
}

// PersistentMenu returns the items of the persistent navigation menu.
func (c *Catalog) PersistentMenu() []MenuItem {
	return slices.Clone(c.menu)
}

// IDs returns every node id in definition order.
func (c *Catalog) IDs() []string {
	return slices.Clone(c.order)
}

// Len returns the number of nodes.
func (c *Catalog) Len() int {
	return len(c.nodes)
}

// Reachable returns the ids reachable from the entry point, breadth first.
// Cycles are visited once.
func (c *Catalog) Reachable() []string {
	return c.walk(c.entry)
}

// Unreachable returns nodes that neither the entry point, the fallback nor
// the persistent menu lead to. They still resolve when a user presses an
// old button carrying their id.
func (c *Catalog) Unreachable() []string {
	roots := []string{c.entry, c.fallback}
	for _, item := range c.menu {
		roots = append(roots, item.Target)
	}
	seen := make(map[string]bool, len(c.nodes))
	for _, id := range c.walk(roots...) {
		seen[id] = true
	}

	var out []string
	for _, id := range c.order {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func (c *Catalog) walk(roots ...string) []string {
	seen := make(map[string]bool, len(c.nodes))
	var out []string
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, ok := c.nodes[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		queue = append(queue, n.Targets()...)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
