package graph

// txnLog is the scratchpad for one in-flight public operation. Mutations
// touching pre-transaction state record their prior value here exactly
// once; newly created nodes and edges need no undo entry because rollback
// truncates the arenas back to the recorded lengths.
type txnLog struct {
	nodeLen int
	edgeLen int

	nodeActivations map[NodeID]uint64
	adjacency       map[NodeID][2]int // prior len(Outgoing), len(Incoming)
	edgeStates      map[EdgeID]edgeState
}

type edgeState struct {
	weight      float32
	activations uint64
	tags        ContextTags
}

// Begin opens a transaction. Only one may be active at a time.
func (s *Store) Begin() error {
	if s.txn != nil {
		return ErrTxnActive
	}
	s.txn = &txnLog{
		nodeLen:         len(s.nodes),
		edgeLen:         len(s.edges),
		nodeActivations: make(map[NodeID]uint64),
		adjacency:       make(map[NodeID][2]int),
		edgeStates:      make(map[EdgeID]edgeState),
	}
	return nil
}

// Commit discards the undo log, making the transaction's mutations
// permanent.
func (s *Store) Commit() error {
	if s.txn == nil {
		return ErrNoTxn
	}
	s.txn = nil
	return nil
}

// Rollback restores the store to its state at Begin: arenas are truncated,
// interning and triple indexes are rewound, and every touched node and
// edge gets its recorded state back.
func (s *Store) Rollback() error {
	t := s.txn
	if t == nil {
		return ErrNoTxn
	}
	s.txn = nil

	for _, e := range s.edges[t.edgeLen:] {
		delete(s.byTriple, edgeKey{from: e.From, to: e.To, stop: e.IsStop})
	}
	s.edges = s.edges[:t.edgeLen]

	for _, n := range s.nodes[t.nodeLen:] {
		delete(s.byPayload, string(n.Payload))
	}
	s.nodes = s.nodes[:t.nodeLen]

	for id, lens := range t.adjacency {
		n := s.nodes[id]
		n.Outgoing = n.Outgoing[:lens[0]]
		n.Incoming = n.Incoming[:lens[1]]
	}
	for id, act := range t.nodeActivations {
		s.nodes[id].Activations = act
	}
	for id, st := range t.edgeStates {
		e := s.edges[id]
		e.Weight = st.weight
		e.Activations = st.activations
		e.Tags = st.tags
	}
	return nil
}

// InTxn reports whether a transaction is active.
func (s *Store) InTxn() bool { return s.txn != nil }

func (s *Store) touchNode(n *Node) {
	t := s.txn
	if t == nil || int(n.ID) >= t.nodeLen {
		return
	}
	if _, ok := t.nodeActivations[n.ID]; !ok {
		t.nodeActivations[n.ID] = n.Activations
	}
}

func (s *Store) touchAdjacency(n *Node) {
	t := s.txn
	if t == nil || int(n.ID) >= t.nodeLen {
		return
	}
	if _, ok := t.adjacency[n.ID]; !ok {
		t.adjacency[n.ID] = [2]int{len(n.Outgoing), len(n.Incoming)}
	}
}

func (s *Store) touchEdge(e *Edge) {
	t := s.txn
	if t == nil || int(e.ID) >= t.edgeLen {
		return
	}
	if _, ok := t.edgeStates[e.ID]; !ok {
		t.edgeStates[e.ID] = edgeState{
			weight:      e.Weight,
			activations: e.Activations,
			tags:        e.Tags.clone(),
		}
	}
}
