package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(id, body string) Node {
	return Node{ID: id, Kind: KindLeaf, Title: id, Body: body}
}

func menu(id string, targets ...string) Node {
	n := Node{ID: id, Kind: KindMenu, Title: id}
	for _, t := range targets {
		n.Children = append(n.Children, Child{Target: t})
	}
	return n
}

func validDefinition() Definition {
	return Definition{
		Entry:    GetStarted,
		Fallback: "oops",
		PersistentMenu: []MenuItem{
			{Title: "Main menu", Target: GetStarted},
		},
		Nodes: []Node{
			menu(GetStarted, "a", "b"),
			leaf("a", "answer a"),
			menu("b", "c", GetStarted),
			leaf("c", "answer c"),
			leaf("oops", "not understood"),
		},
	}
}

func TestDefault_IsValid(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, GetStarted, c.Entry().ID)
	assert.True(t, c.Fallback().IsLeaf())
	assert.NotEmpty(t, c.PersistentMenu())

	salary, ok := c.Lookup("salary")
	require.True(t, ok)
	assert.Equal(t, []string{"quarantine_pay", "ip_refund", "no_salary"}, salary.Targets())
}

func TestDefault_EveryReachableNodeResolves(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	reachable := c.Reachable()
	require.NotEmpty(t, reachable)
	for _, id := range reachable {
		n, ok := c.Lookup(id)
		require.True(t, ok, "reachable node %q must resolve", id)
		for _, target := range n.Targets() {
			_, ok := c.Lookup(target)
			assert.True(t, ok, "%q -> %q dangles", id, target)
		}
		if n.IsMenu() {
			assert.NotEmpty(t, n.Children)
			assert.LessOrEqual(t, len(n.Children), MaxButtons)
		}
	}
}

func TestDefault_ButtonsDefaultToSeeMore(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	for _, ch := range c.Entry().Children {
		assert.Equal(t, DefaultLabel, ch.Label)
	}
}

func TestDefault_UnreachableAnswersAreKept(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"employment_rights", "passport_expiring", "new_permit"}, c.Unreachable())
	_, ok := c.Lookup("employment_rights")
	assert.True(t, ok)
}

func TestNew_CycleIsLegal(t *testing.T) {
	c, err := New(validDefinition())
	require.NoError(t, err)

	assert.Equal(t, []string{GetStarted, "a", "b", "c"}, c.Reachable())
	assert.Empty(t, c.Unreachable())
	assert.Equal(t, 5, c.Len())
}

func TestNew_ReportsEveryProblem(t *testing.T) {
	def := validDefinition()
	def.Nodes = append(def.Nodes,
		menu("empty"),
		menu("dangling", "a", "ghost", "phantom"),
	)
	var many []string
	for i := 0; i <= MaxButtons; i++ {
		many = append(many, "a")
	}
	def.Nodes = append(def.Nodes, menu("crowded", many...))

	_, err := New(def)
	require.Error(t, err)

	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Contains(t, integrity.Problems, `menu "empty" has no children`)
	assert.Contains(t, integrity.Problems, `menu "dangling" child #1 targets unknown node "ghost"`)
	assert.Contains(t, integrity.Problems, `menu "dangling" child #2 targets unknown node "phantom"`)
	assert.Contains(t, integrity.Problems, fmt.Sprintf(`menu "crowded" has %d children, limit is %d`, MaxButtons+1, MaxButtons))
	assert.Len(t, integrity.Problems, 4)
}

func TestNew_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Definition)
		problem string
	}{
		{
			name:    "duplicate id",
			mutate:  func(d *Definition) { d.Nodes = append(d.Nodes, leaf("a", "again")) },
			problem: `node "a" is defined more than once`,
		},
		{
			name:    "missing entry",
			mutate:  func(d *Definition) { d.Entry = "" },
			problem: "no entry point defined",
		},
		{
			name:    "unknown entry",
			mutate:  func(d *Definition) { d.Entry = "home" },
			problem: `entry point "home" is not a node`,
		},
		{
			name:    "fallback is a menu",
			mutate:  func(d *Definition) { d.Fallback = "b" },
			problem: `fallback "b" must be a leaf`,
		},
		{
			name:    "leaf without body",
			mutate:  func(d *Definition) { d.Nodes[1].Body = "  " },
			problem: `leaf "a" has an empty body`,
		},
		{
			name: "leaf with children",
			mutate: func(d *Definition) {
				d.Nodes[3].Children = []Child{{Target: "a"}}
			},
			problem: `leaf "c" must not have children`,
		},
		{
			name:    "unknown kind",
			mutate:  func(d *Definition) { d.Nodes[3].Kind = "carousel" },
			problem: `node "c" has unknown kind "carousel"`,
		},
		{
			name:    "label too long",
			mutate:  func(d *Definition) { d.Nodes[0].Children[0].Label = strings.Repeat("x", MaxLabelLength+1) },
			problem: `menu "GET_STARTED" child #0 label exceeds 20 characters`,
		},
		{
			name:    "listed node without title",
			mutate:  func(d *Definition) { d.Nodes[1].Title = "" },
			problem: `node "a" is listed by menu "GET_STARTED" but has no title`,
		},
		{
			name: "persistent menu target unknown",
			mutate: func(d *Definition) {
				d.PersistentMenu = append(d.PersistentMenu, MenuItem{Title: "Help", Target: "help"})
			},
			problem: `persistent menu item #1 targets unknown node "help"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)

			_, err := New(def)

			var integrity *IntegrityError
			require.ErrorAs(t, err, &integrity)
			assert.Contains(t, integrity.Problems, tt.problem)
		})
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	c, err := New(validDefinition())
	require.NoError(t, err)

	n, ok := c.Lookup(GetStarted)
	require.True(t, ok)
	n.Children[0].Target = "mutated"

	again, _ := c.Lookup(GetStarted)
	assert.Equal(t, "a", again.Children[0].Target)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("entry: GET_STARTED\nnodez: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode catalog")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
entry: GET_STARTED
fallback: oops
nodes:
  - id: GET_STARTED
    kind: menu
    title: Home
    children:
      - label: Read
        target: answer
  - id: answer
    kind: leaf
    title: Answer
    body: "42"
  - id: oops
    kind: leaf
    body: "Sorry?"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Read", c.Entry().Children[0].Label)
	assert.Equal(t, "Sorry?", c.Fallback().Body)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
