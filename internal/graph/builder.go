package graph

import "github.com/ethanolivertroy/depdetect/internal/models"

// Builder accumulates nodes and edges. Every edge adds both of its nodes, so a
// built graph never has dangling edges.
type Builder struct {
	g *Graph
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{g: newGraph()}
}

// AddNode adds n if no node with the same id exists yet. When it does, empty
// declared fields are filled from n.
func (b *Builder) AddNode(n Node) *Builder {
	existing, ok := b.g.nodes[n.ID]
	if !ok {
		b.g.nodes[n.ID] = n
		return b
	}
	if existing.Name == "" {
		existing.Name = n.Name
	}
	if existing.Version == "" {
		existing.Version = n.Version
	}
	b.g.nodes[n.ID] = existing
	return b
}

// AddRoot adds n as a direct dependency.
func (b *Builder) AddRoot(n Node) *Builder {
	b.AddNode(n)
	b.g.roots[n.ID] = struct{}{}
	return b
}

// AddChild adds an edge from parent to child.
func (b *Builder) AddChild(parent, child Node) *Builder {
	b.AddNode(parent)
	b.AddNode(child)
	b.link(parent.ID, child.ID)
	return b
}

// AddGraph copies every node, edge and root of g. Nil graphs are ignored.
func (b *Builder) AddGraph(g *Graph) *Builder {
	if g == nil {
		return b
	}
	b.copyNodesAndEdges(g)
	for id := range g.roots {
		b.g.roots[id] = struct{}{}
	}
	return b
}

// Build returns a snapshot of the accumulated graph. The builder stays usable
// and later changes do not affect returned graphs.
func (b *Builder) Build() *Graph {
	out := newGraph()
	for id, n := range b.g.nodes {
		out.nodes[id] = n
	}
	for id := range b.g.roots {
		out.roots[id] = struct{}{}
	}
	for parent, kids := range b.g.children {
		for child := range kids {
			addEdge(out, parent, child)
		}
	}
	return out
}

func (b *Builder) copyNodesAndEdges(g *Graph) {
	for _, n := range g.nodes {
		b.AddNode(n)
	}
	for parent, kids := range g.children {
		for child := range kids {
			b.link(parent, child)
		}
	}
}

func (b *Builder) link(parent, child models.ExternalID) {
	addEdge(b.g, parent, child)
}

func addEdge(g *Graph, parent, child models.ExternalID) {
	if g.children[parent] == nil {
		g.children[parent] = make(idSet)
	}
	g.children[parent][child] = struct{}{}
	if g.parents[child] == nil {
		g.parents[child] = make(idSet)
	}
	g.parents[child][parent] = struct{}{}
}
