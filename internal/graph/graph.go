// Package graph models resolved dependencies and the relationships between
// them. Nodes are keyed by models.ExternalID so graphs coming from different
// ecosystems can be merged without collisions.
//
// A Graph is immutable: it is produced by a Builder and never changed
// afterwards. Merging graphs always produces a new Graph.
package graph

import (
	"slices"

	"github.com/ethanolivertroy/depdetect/internal/models"
)

// Node is a single dependency. Name and Version carry the values as declared
// by the ecosystem; ID is the identity.
type Node struct {
	ID      models.ExternalID
	Name    string
	Version string
}

// NewNode creates a node whose declared name and version match the id.
func NewNode(id models.ExternalID) Node {
	return Node{ID: id, Name: id.Name, Version: id.Version}
}

// Edge is a parent to child relationship.
type Edge struct {
	Parent models.ExternalID
	Child  models.ExternalID
}

type idSet map[models.ExternalID]struct{}

// Graph is a directed dependency graph with a designated root set.
type Graph struct {
	nodes    map[models.ExternalID]Node
	roots    idSet
	children map[models.ExternalID]idSet
	parents  map[models.ExternalID]idSet
}

func newGraph() *Graph {
	return &Graph{
		nodes:    make(map[models.ExternalID]Node),
		roots:    make(idSet),
		children: make(map[models.ExternalID]idSet),
		parents:  make(map[models.ExternalID]idSet),
	}
}

// Empty returns a valid graph with no nodes.
func Empty() *Graph {
	return newGraph()
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IsEmpty reports whether the graph has no root dependencies.
func (g *Graph) IsEmpty() bool {
	return len(g.roots) == 0
}

// Has reports whether a node with the id exists.
func (g *Graph) Has(id models.ExternalID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the node with the id.
func (g *Graph) Node(id models.ExternalID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// IsRoot reports whether the id is a direct dependency.
func (g *Graph) IsRoot(id models.ExternalID) bool {
	_, ok := g.roots[id]
	return ok
}

// Nodes returns every node, sorted by id.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sortNodes(out)
	return out
}

// Roots returns the direct dependencies, sorted by id.
func (g *Graph) Roots() []Node {
	return g.lookup(g.roots)
}

// Children returns the children of id, sorted by id.
func (g *Graph) Children(id models.ExternalID) []Node {
	return g.lookup(g.children[id])
}

// Parents returns the parents of id, sorted by id. Membership in the root set
// is not a parent; use IsRoot for that.
func (g *Graph) Parents(id models.ExternalID) []Node {
	return g.lookup(g.parents[id])
}

// Edges returns every parent to child edge, sorted.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for parent, kids := range g.children {
		for child := range kids {
			out = append(out, Edge{Parent: parent, Child: child})
		}
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if c := a.Parent.Compare(b.Parent); c != 0 {
			return c
		}
		return a.Child.Compare(b.Child)
	})
	return out
}

func (g *Graph) lookup(ids idSet) []Node {
	out := make([]Node, 0, len(ids))
	for id := range ids {
		out = append(out, g.nodes[id])
	}
	sortNodes(out)
	return out
}

func sortNodes(nodes []Node) {
	slices.SortFunc(nodes, func(a, b Node) int {
		return a.ID.Compare(b.ID)
	})
}
