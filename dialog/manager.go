// Package dialog maps inbound events onto the topic tree and renders the
// node the user lands on as an outbound message.
//
// Navigation is stateless: the user's position is carried by the payload of
// the button they pressed, so the manager holds nothing but the catalog.
package dialog

import (
	"errors"
	"fmt"

	"github.com/semchie/sahajjo-messenger-bot/catalog"
	"github.com/semchie/sahajjo-messenger-bot/messenger"
)

// ErrUnrecognizedSelector is reported by Route for a postback the catalog
// does not know. Resolve answers such events with the fallback leaf.
var ErrUnrecognizedSelector = errors.New("unrecognized selector")

// DialogManager resolves an event to the reply the user should get.
type DialogManager interface {
	Resolve(ev Event) messenger.Response
}

// DefaultManager resolves events against a catalog.
type DefaultManager struct {
	catalog *catalog.Catalog
}

// NewManager creates a manager over c.
func NewManager(c *catalog.Catalog) *DefaultManager {
	return &DefaultManager{catalog: c}
}

// Resolve returns the reply for ev. It never fails: unknown selectors land on
// the fallback leaf. Free text is not interpreted and always shows the entry
// menu.
func (m *DefaultManager) Resolve(ev Event) messenger.Response {
	node, _ := m.Route(ev)
	return m.Render(node)
}

// Route picks the node ev leads to. For an unknown selector it returns the
// fallback node together with an error wrapping ErrUnrecognizedSelector.
func (m *DefaultManager) Route(ev Event) (catalog.Node, error) {
	if ev.Kind != KindPostback {
		return m.catalog.Entry(), nil
	}
	node, ok := m.catalog.Lookup(ev.Selector)
	if !ok {
		return m.catalog.Fallback(), fmt.Errorf("%w: %q", ErrUnrecognizedSelector, ev.Selector)
	}
	return node, nil
}

// Render turns a node into a message. A menu becomes a generic template with
// one card per child, in catalog order; a leaf becomes its text.
func (m *DefaultManager) Render(node catalog.Node) messenger.Response {
	if !node.IsMenu() {
		return messenger.TextResponse(node.Body)
	}

	elements := make([]messenger.Element, 0, len(node.Children))
	for _, ch := range node.Children {
		target, _ := m.catalog.Lookup(ch.Target)
		elements = append(elements, messenger.Element{
			Title:    target.Title,
			Subtitle: target.Subtitle,
			Buttons:  []messenger.Button{messenger.PostbackButton(ch.Label, ch.Target)},
		})
	}
	return messenger.GenericTemplate(elements...)
}

// PersistentMenu renders the catalog's persistent menu as call to actions.
func PersistentMenu(c *catalog.Catalog) []messenger.MenuAction {
	items := c.PersistentMenu()
	actions := make([]messenger.MenuAction, 0, len(items))
	for _, item := range items {
		actions = append(actions, messenger.MenuAction{
			Type:    messenger.ButtonPostback,
			Title:   item.Title,
			Payload: item.Target,
		})
	}
	return actions
}
