package graph

// RestoreNodeState sets a node's activation counter while rebuilding a
// store from disk. Not for use outside the persistence layer.
func (s *Store) RestoreNodeState(id NodeID, activations uint64) {
	if n := s.Node(id); n != nil {
		n.Activations = activations
	}
}

// RestoreEdgeState sets an edge's weight, counter and tags while
// rebuilding a store from disk. Tags must arrive in descending strength
// order, as the codec writes them.
func (s *Store) RestoreEdgeState(id EdgeID, weight float32, activations uint64, tags []Tag) {
	e := s.Edge(id)
	if e == nil {
		return
	}
	e.Weight = clampWeight(weight)
	e.Activations = activations
	e.Tags = NewContextTags(s.opts.TagCap)
	for _, t := range tags {
		e.Tags.Add(t.Node, t.Strength)
	}
}
