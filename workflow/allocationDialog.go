package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/contracts_backend/contract"
)

// ItemAllocations lists the allocations of one item for the Manage Allocations dialog.
func (s *Session) ItemAllocations(itemID contract.RecordID) []contract.Allocation {
	return s.store.Get(itemID)
}

// AddAllocation binds another category to an item. On a draft item the allocation
// is kept locally and created by the next save; on a persisted item it is created
// on the backend right away.
func (s *Session) AddAllocation(ctx context.Context, itemID contract.RecordID, pair contract.Pair, notes string) (contract.Allocation, error) {
	if s.closed.Load() {
		return contract.Allocation{}, ErrStaleSession
	}
	if !pair.IsSet() {
		return contract.Allocation{}, fmt.Errorf("cost code and cost type are required")
	}

	s.mu.Lock()
	i := s.indexLocked(itemID)
	if i < 0 {
		s.mu.Unlock()
		return contract.Allocation{}, ErrItemNotFound
	}
	item := s.items[i]
	for _, a := range s.store.Get(itemID) {
		if a.Pair == pair {
			s.mu.Unlock()
			return contract.Allocation{}, fmt.Errorf("item %s already has this cost code and cost type", item.Number)
		}
	}
	if res := s.validateLocked(pair, itemID); !res.Valid {
		s.mu.Unlock()
		return contract.Allocation{}, res.Err(pair, item.Number)
	}

	if itemID.IsDraft() {
		a := contract.Allocation{
			ID:         s.nextDraftLocked(),
			ItemID:     itemID,
			ContractID: s.ContractID,
			Pair:       pair,
			Notes:      notes,
		}
		s.store.Append(itemID, a)
		s.mu.Unlock()
		return a, nil
	}
	s.mu.Unlock()

	backendID, _ := itemID.PersistedID()
	a := contract.Allocation{ItemID: itemID, ContractID: s.ContractID, Pair: pair, Notes: notes}
	created, err := s.Gateway.CreateAllocation(ctx, backendID, a.Input())
	if err != nil {
		s.logItemError("AddAllocation", "Gateway.CreateAllocation", item, "", err)
		return contract.Allocation{}, fmt.Errorf("failed to create allocation for item %s: %w", item.Number, err)
	}
	if s.closed.Load() {
		return contract.Allocation{}, ErrStaleSession
	}
	a = contract.AllocationFromModel(created)
	a.ItemID = itemID
	a.ContractID = s.ContractID
	s.store.Append(itemID, a)
	return a, nil
}

// RemoveAllocation deletes one allocation of an item. Persisted allocations are
// deleted on the backend first.
func (s *Session) RemoveAllocation(ctx context.Context, itemID contract.RecordID, allocationID contract.RecordID) error {
	if s.closed.Load() {
		return ErrStaleSession
	}
	found := false
	for _, a := range s.store.Get(itemID) {
		if a.ID == allocationID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("allocation %s not found on item", allocationID)
	}
	if backendID, ok := allocationID.PersistedID(); ok {
		if err := s.Gateway.DeleteAllocation(ctx, backendID); err != nil {
			item, _ := s.Item(itemID)
			s.logItemError("RemoveAllocation", "Gateway.DeleteAllocation", item, "", err)
			return fmt.Errorf("failed to delete allocation: %w", err)
		}
		if s.closed.Load() {
			return ErrStaleSession
		}
	}
	s.store.RemoveAllocation(itemID, allocationID)
	return nil
}
