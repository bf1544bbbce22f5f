package allocation

import (
	"fmt"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/contract"
)

type Result struct {
	Valid                 bool
	ConflictingItemID     contract.RecordID
	ConflictingItemNumber string
}

// Err converts an invalid result into a *ValidationError; nil when valid.
func (r Result) Err(pair contract.Pair, itemNumber string) error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Pair: pair, ItemNumber: itemNumber, ConflictingItemNumber: r.ConflictingItemNumber}
}

// ValidationError blocks a mutation that would claim a pair already owned by another item.
type ValidationError struct {
	Pair                  contract.Pair
	ItemNumber            string
	ConflictingItemNumber string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("this cost code and cost type combination is already used by item %s", e.ConflictingItemNumber)
	if e.ItemNumber != "" {
		return fmt.Sprintf("item %s: %s", e.ItemNumber, msg)
	}
	return msg
}

// Validate checks that pair is not claimed by any item other than exclude.
//
// Tier 1 matches the legacy category fields of persisted items; tier 2 matches the
// flattened allocation records. Both are needed while persisted items may still
// carry a category that was never promoted into an allocation. The category of a
// draft item has no allocation record until it is saved, so it is always a claim.
func Validate(items []contract.Item, allocations []contract.Allocation, pair contract.Pair, exclude contract.RecordID, legacyScan bool) Result {
	if !pair.IsSet() {
		return Result{Valid: true}
	}
	for _, it := range items {
		if it.ID == exclude || it.Category != pair {
			continue
		}
		if it.ID.IsDraft() || (legacyScan && it.ID.IsPersisted()) {
			return Result{ConflictingItemID: it.ID, ConflictingItemNumber: it.Number}
		}
	}
	for _, a := range allocations {
		if a.ItemID == exclude {
			continue
		}
		if a.Pair == pair {
			return Result{ConflictingItemID: a.ItemID, ConflictingItemNumber: itemNumber(items, a.ItemID)}
		}
	}
	return Result{Valid: true}
}

func itemNumber(items []contract.Item, id contract.RecordID) string {
	for _, it := range items {
		if it.ID == id {
			return it.Number
		}
	}
	return id.String()
}

// Validator binds Validate to a store.
type Validator struct {
	store      *Store
	legacyScan bool
}

func NewValidator(store *Store) *Validator {
	return &Validator{store: store, legacyScan: config.LegacyCategoryScan()}
}

func (v *Validator) Validate(contractID int, items []contract.Item, pair contract.Pair, exclude contract.RecordID) Result {
	return Validate(items, v.store.AllInContract(contractID), pair, exclude, v.legacyScan)
}
