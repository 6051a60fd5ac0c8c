package graph

// Tag associates a prior-wave node with a strength. Tags bias edge scoring
// when the tagged node is currently in the wave.
type Tag struct {
	Node     NodeID
	Strength float32
}

// ContextTags is a bounded multiset of tags kept sorted by descending
// strength. Inserting into a full set replaces the weakest entry rather
// than growing; there are no tombstones.
type ContextTags struct {
	tags []Tag
	cap  int
}

// NewContextTags returns an empty tag set bounded to capacity k.
func NewContextTags(k int) ContextTags {
	if k < 1 {
		k = 1
	}
	return ContextTags{cap: k}
}

// Len reports the number of live tags.
func (c *ContextTags) Len() int { return len(c.tags) }

// Cap reports the bound k.
func (c *ContextTags) Cap() int { return c.cap }

// All returns the tags in descending strength order. The slice is valid
// only until the next mutating call.
func (c *ContextTags) All() []Tag { return c.tags }

// Decay multiplies every strength by gamma. Tags never decay to removal;
// they are only displaced by stronger inserts.
func (c *ContextTags) Decay(gamma float32) {
	for i := range c.tags {
		c.tags[i].Strength *= gamma
	}
}

// Add merges strength into the tag for node, creating it if absent. When
// the set is full the weakest tag is replaced, unless the candidate is
// itself the weakest.
func (c *ContextTags) Add(node NodeID, strength float32) {
	for i := range c.tags {
		if c.tags[i].Node == node {
			c.tags[i].Strength += strength
			c.bubbleUp(i)
			return
		}
	}
	if len(c.tags) < c.cap {
		c.tags = append(c.tags, Tag{Node: node, Strength: strength})
		c.bubbleUp(len(c.tags) - 1)
		return
	}
	last := len(c.tags) - 1
	if c.tags[last].Strength >= strength {
		return
	}
	c.tags[last] = Tag{Node: node, Strength: strength}
	c.bubbleUp(last)
}

// bubbleUp restores descending-strength order after position i changed.
func (c *ContextTags) bubbleUp(i int) {
	for i > 0 && c.tags[i-1].Strength < c.tags[i].Strength {
		c.tags[i-1], c.tags[i] = c.tags[i], c.tags[i-1]
		i--
	}
}

// Strength returns the strength for node, or 0 if untagged.
func (c *ContextTags) Strength(node NodeID) float32 {
	for _, t := range c.tags {
		if t.Node == node {
			return t.Strength
		}
	}
	return 0
}

// clone returns a deep copy, used by the transaction undo log.
func (c *ContextTags) clone() ContextTags {
	cp := ContextTags{cap: c.cap}
	if len(c.tags) > 0 {
		cp.tags = append([]Tag(nil), c.tags...)
	}
	return cp
}
