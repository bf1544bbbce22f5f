// Package allocation owns the item -> allocations mapping of a contract and the
// uniqueness rule over (cost code, cost type) pairs.
package allocation

import (
	"sort"
	"sync"

	"github.com/mmdatafocus/contracts_backend/contract"
)

// Store maps an item id to its allocation records. It is the source of truth for
// which categories an item covers. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	byItem map[contract.RecordID][]contract.Allocation
}

func NewStore() *Store {
	return &Store{byItem: make(map[contract.RecordID][]contract.Allocation)}
}

// Get returns a copy of the item's allocations; never nil.
func (s *Store) Get(itemID contract.RecordID) []contract.Allocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.byItem[itemID])
}

// Set replaces the item's list wholesale. An empty list removes the entry.
func (s *Store) Set(itemID contract.RecordID, allocations []contract.Allocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(allocations) == 0 {
		delete(s.byItem, itemID)
		return
	}
	s.byItem[itemID] = clone(allocations)
}

func (s *Store) Append(itemID contract.RecordID, allocation contract.Allocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byItem[itemID] = append(s.byItem[itemID], allocation)
}

// RemapID moves the list stored under tempID to realID and drops tempID, in one step.
// The moved allocations are re-owned by realID.
func (s *Store) RemapID(tempID, realID contract.RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byItem[tempID]
	delete(s.byItem, tempID)
	if len(list) == 0 {
		delete(s.byItem, realID)
		return
	}
	moved := clone(list)
	for i := range moved {
		moved[i].ItemID = realID
	}
	s.byItem[realID] = moved
}

func (s *Store) Remove(itemID contract.RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byItem, itemID)
}

// RemoveAllocation drops one allocation of an item and reports whether it existed.
func (s *Store) RemoveAllocation(itemID, allocationID contract.RecordID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byItem[itemID]
	for i, a := range list {
		if a.ID != allocationID {
			continue
		}
		rest := append(clone(list[:i]), list[i+1:]...)
		if len(rest) == 0 {
			delete(s.byItem, itemID)
		} else {
			s.byItem[itemID] = rest
		}
		return true
	}
	return false
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byItem = make(map[contract.RecordID][]contract.Allocation)
}

// AllInContract flattens the allocations of every item of the contract, ordered by
// item id (persisted before draft) and then insertion order.
func (s *Store) AllInContract(contractID int) []contract.Allocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]contract.RecordID, 0, len(s.byItem))
	for k := range s.byItem {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessID(keys[i], keys[j]) })

	var all []contract.Allocation
	for _, k := range keys {
		for _, a := range s.byItem[k] {
			if a.ContractID == contractID {
				all = append(all, a)
			}
		}
	}
	return all
}

func lessID(a, b contract.RecordID) bool {
	if a.IsPersisted() != b.IsPersisted() {
		return a.IsPersisted()
	}
	av, _ := a.PersistedID()
	bv, _ := b.PersistedID()
	if !a.IsPersisted() {
		av, _ = a.DraftSeq()
		bv, _ = b.DraftSeq()
	}
	return av < bv
}

func clone(list []contract.Allocation) []contract.Allocation {
	out := make([]contract.Allocation, len(list))
	copy(out, list)
	return out
}
