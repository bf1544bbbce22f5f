package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/contracts_backend/catalog"
	"github.com/mmdatafocus/contracts_backend/contract"
	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/shopspring/decimal"
)

type DraftItemInput struct {
	Number      string
	Description string
	Amount      decimal.Decimal
	Notes       string
	Category    contract.Pair
}

// AddDraftItem appends a draft item to the grid. An empty number takes the next
// free item number; a set category is validated first.
func (s *Session) AddDraftItem(input DraftItemInput) (contract.Item, error) {
	if s.closed.Load() {
		return contract.Item{}, ErrStaleSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	number := strings.TrimSpace(input.Number)
	if number == "" {
		number = utils.NextItemNumber(s.itemNumbersLocked())
	}
	for _, it := range s.items {
		if it.Number == number {
			return contract.Item{}, fmt.Errorf("item number %s is already used", number)
		}
	}
	if input.Category.IsSet() {
		if res := s.validateLocked(input.Category, contract.RecordID{}); !res.Valid {
			return contract.Item{}, res.Err(input.Category, number)
		}
	}

	item := contract.Item{
		ID:          s.nextDraftLocked(),
		ContractID:  s.ContractID,
		Number:      number,
		Description: input.Description,
		Amount:      input.Amount,
		Notes:       input.Notes,
		Status:      models.ContractItemStatusOpen,
		Category:    input.Category,
	}
	s.items = append(s.items, item)
	return item, nil
}

// SetItemCategory changes the item's category cell. The new pair is checked against
// every other item; an invalid pair leaves the item unchanged.
func (s *Session) SetItemCategory(id contract.RecordID, pair contract.Pair) error {
	if s.closed.Load() {
		return ErrStaleSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return ErrItemNotFound
	}
	if pair.IsSet() {
		if res := s.validateLocked(pair, id); !res.Valid {
			return res.Err(pair, s.items[i].Number)
		}
	}
	s.items[i].Category = pair
	return nil
}

func (s *Session) SetItemAmount(id contract.RecordID, amount decimal.Decimal) error {
	if s.closed.Load() {
		return ErrStaleSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return ErrItemNotFound
	}
	s.items[i].Amount = amount
	return nil
}

func (s *Session) SetItemDetails(id contract.RecordID, description string, notes string) error {
	if s.closed.Load() {
		return ErrStaleSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return ErrItemNotFound
	}
	s.items[i].Description = description
	s.items[i].Notes = notes
	return nil
}

// DeleteItem drops a draft locally. A persisted item is deleted on the backend first.
func (s *Session) DeleteItem(ctx context.Context, id contract.RecordID) error {
	if s.closed.Load() {
		return ErrStaleSession
	}
	if backendID, ok := id.PersistedID(); ok {
		s.mu.Lock()
		exists := s.indexLocked(id) >= 0
		s.mu.Unlock()
		if !exists {
			return ErrItemNotFound
		}
		if err := s.Gateway.DeleteItem(ctx, s.ContractID, backendID); err != nil {
			item, _ := s.Item(id)
			s.logItemError("DeleteItem", "Gateway.DeleteItem", item, "", err)
			return fmt.Errorf("failed to delete item: %w", err)
		}
		if s.closed.Load() {
			return ErrStaleSession
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return ErrItemNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.store.Remove(id)
	delete(s.snapshot, id)
	return nil
}

// GenerateFromBudget adds one draft item for every budgeted pair of the project
// that no item or allocation of the contract uses yet.
func (s *Session) GenerateFromBudget(cat *catalog.Catalog) ([]contract.Item, error) {
	if s.closed.Load() {
		return nil, ErrStaleSession
	}
	if cat == nil {
		return nil, nil
	}
	pairs := catalog.BudgetedPairs(cat, s.ProjectID)

	s.mu.Lock()
	defer s.mu.Unlock()
	var added []contract.Item
	for _, pair := range pairs {
		if res := s.validateLocked(pair, contract.RecordID{}); !res.Valid {
			continue
		}
		description := cat.CostCodeLabel(pair.CostCodeID)
		if cc, ok := cat.CostCode(pair.CostCodeID); ok && cc.Description != "" {
			description = cc.Description
		}
		item := contract.Item{
			ID:          s.nextDraftLocked(),
			ContractID:  s.ContractID,
			Number:      utils.NextItemNumber(s.itemNumbersLocked()),
			Description: description,
			Amount:      decimal.Zero,
			Status:      models.ContractItemStatusOpen,
			Category:    pair,
		}
		s.items = append(s.items, item)
		added = append(added, item)
	}
	return added, nil
}
