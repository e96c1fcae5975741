package match

import "fmt"

// IndexMap is a bijection between the node ids of one candidate sequence and
// dense 0-based positions. Connectivity matrices and the rating matrix are
// position-indexed, so every phase translates through one shared IndexMap.
//
// An IndexMap is immutable after construction and safe for concurrent reads.
type IndexMap struct {
	ids []NodeID
	pos map[NodeID]int
}

// NewIndexMap assigns positions in sequence order. Duplicate ids are rejected.
func NewIndexMap(ids []NodeID) (*IndexMap, error) {
	m := &IndexMap{
		ids: make([]NodeID, len(ids)),
		pos: make(map[NodeID]int, len(ids)),
	}
	copy(m.ids, ids)
	for i, id := range ids {
		if _, dup := m.pos[id]; dup {
			return nil, fmt.Errorf("%w: node %d listed twice", ErrInvalidInput, id)
		}
		m.pos[id] = i
	}
	return m, nil
}

// Len returns the number of nodes on this side.
func (m *IndexMap) Len() int { return len(m.ids) }

// Position returns the dense position of id.
func (m *IndexMap) Position(id NodeID) (int, bool) {
	p, ok := m.pos[id]
	return p, ok
}

// Contains reports whether id belongs to this candidate set.
func (m *IndexMap) Contains(id NodeID) bool {
	_, ok := m.pos[id]
	return ok
}

// ID returns the node id stored at position p.
func (m *IndexMap) ID(p int) NodeID { return m.ids[p] }

// IDs returns a copy of the ids in position order.
func (m *IndexMap) IDs() []NodeID {
	out := make([]NodeID, len(m.ids))
	copy(out, m.ids)
	return out
}
