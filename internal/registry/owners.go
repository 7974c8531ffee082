package registry

import "github.com/iliyamo/smartrent-ledger/internal/model"

// ownerSet is the set of holders with a positive balance of one asset.  The
// backing slice keeps enumeration cheap; the index map gives O(1) add and
// swap-remove.
type ownerSet struct {
	list  []model.Address
	index map[model.Address]int
}

func newOwnerSet() *ownerSet {
	return &ownerSet{index: make(map[model.Address]int)}
}

func (s *ownerSet) has(a model.Address) bool {
	_, ok := s.index[a]
	return ok
}

func (s *ownerSet) len() int { return len(s.list) }

// add appends a and returns its undo.
func (s *ownerSet) add(a model.Address) func() {
	if s.has(a) {
		return func() {}
	}
	s.index[a] = len(s.list)
	s.list = append(s.list, a)
	return func() {
		last := len(s.list) - 1
		delete(s.index, s.list[last])
		s.list = s.list[:last]
	}
}

// remove swaps the last member into a's slot and returns the undo that
// restores the exact previous layout.
func (s *ownerSet) remove(a model.Address) func() {
	i, ok := s.index[a]
	if !ok {
		return func() {}
	}
	last := len(s.list) - 1
	moved := s.list[last]
	s.list[i] = moved
	s.index[moved] = i
	s.list = s.list[:last]
	delete(s.index, a)
	return func() {
		s.list = append(s.list, moved)
		s.list[i] = a
		s.index[a] = i
		s.index[moved] = last
	}
}

// consistent reports whether index and list describe the same set.
func (s *ownerSet) consistent() bool {
	if len(s.index) != len(s.list) {
		return false
	}
	for i, a := range s.list {
		if j, ok := s.index[a]; !ok || j != i {
			return false
		}
	}
	return true
}

func (s *ownerSet) members() []model.Address {
	out := make([]model.Address, len(s.list))
	copy(out, s.list)
	return out
}
