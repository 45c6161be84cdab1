package catalog

// Kind tells how a node is rendered.
type Kind string

const (
	// KindMenu renders as a list of selectable children.
	KindMenu Kind = "menu"
	// KindLeaf renders as a literal text answer.
	KindLeaf Kind = "leaf"
)

// Platform rendering limits for a generic template and a persistent menu.
const (
	MaxButtons        = 10
	MaxTitleLength    = 80
	MaxLabelLength    = 20
	MaxTextLength     = 2000
	MaxMenuItems      = 20
	MaxMenuItemLength = 30
)

// DefaultLabel is used for a child button without an explicit label.
const DefaultLabel = "See More"

// GetStarted is the payload of the platform's "get started" button.
const GetStarted = "GET_STARTED"

// Child is one button of a menu: the label shown and the node it leads to.
type Child struct {
	Label  string `yaml:"label"`
	Target string `yaml:"target"`
}

// Node is a vertex of the topic tree. Its ID doubles as the postback payload.
type Node struct {
	ID       string  `yaml:"id"`
	Kind     Kind    `yaml:"kind"`
	Title    string  `yaml:"title"`
	Subtitle string  `yaml:"subtitle"`
	Children []Child `yaml:"children"`
	Body     string  `yaml:"body"`
}

// IsMenu reports whether the node renders as a button list.
func (n Node) IsMenu() bool {
	return n.Kind == KindMenu
}

// IsLeaf reports whether the node renders as plain text.
func (n Node) IsLeaf() bool {
	return n.Kind == KindLeaf
}

// Targets returns the child node ids in display order.
func (n Node) Targets() []string {
	ids := make([]string, 0, len(n.Children))
	for _, ch := range n.Children {
		ids = append(ids, ch.Target)
	}
	return ids
}

// MenuItem is one entry of the persistent navigation menu.
type MenuItem struct {
	Title  string `yaml:"title"`
	Target string `yaml:"target"`
}

// Definition is the static description a Catalog is built from.
type Definition struct {
	Entry          string     `yaml:"entry"`
	Fallback       string     `yaml:"fallback"`
	PersistentMenu []MenuItem `yaml:"persistent_menu"`
	Nodes          []Node     `yaml:"nodes"`
}
