package graph

// Aggregate unions graphs by node identity. The same ExternalID appearing in
// several inputs becomes one node carrying the union of their edges, and every
// input root is a root of the result. Nil inputs are skipped. Inputs are not
// modified.
func Aggregate(graphs ...*Graph) *Graph {
	b := NewBuilder()
	for _, g := range graphs {
		b.AddGraph(g)
	}
	return b.Build()
}
