package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/contract"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("contracts_backend/workflow")

type ItemOutcome string

const (
	ItemCreated ItemOutcome = "created"
	ItemUpdated ItemOutcome = "updated"
	ItemFailed  ItemOutcome = "failed"
	// ItemSkipped marks items not reached because the sweep was aborted.
	ItemSkipped ItemOutcome = "skipped"
	// ItemOrphaned marks a backend item whose draft was deleted while it was being created.
	ItemOrphaned ItemOutcome = "orphaned"
)

// ItemResult is the unit-of-work result of one item in a save sweep.
type ItemResult struct {
	// ItemID is the identifier after the sweep; TempID is set when a draft was persisted.
	ItemID     contract.RecordID
	TempID     contract.RecordID
	ItemNumber string
	Outcome    ItemOutcome
	Err        error

	abort bool
}

type SweepReport struct {
	ContractID    int
	CorrelationID string
	Results       []ItemResult
	// Aborted holds the validation error that stopped the sweep.
	Aborted  error
	Total    decimal.Decimal
	TotalErr error
	Stale    bool
}

func (r *SweepReport) FailedItems() []string {
	var failed []string
	for _, res := range r.Results {
		if res.Outcome == ItemFailed || res.Outcome == ItemOrphaned {
			failed = append(failed, res.ItemNumber)
		}
	}
	return failed
}

// Err is nil only when every item and the contract total were saved.
func (r *SweepReport) Err() error {
	if r == nil {
		return nil
	}
	if r.Stale {
		return ErrStaleSession
	}
	if r.Aborted != nil {
		return r.Aborted
	}
	failed := r.FailedItems()
	if len(failed) == 0 && r.TotalErr == nil {
		return nil
	}
	return &PartialFailureError{Operation: "save", FailedItems: failed, TotalFailed: r.TotalErr != nil}
}

// PartialFailureError is the user-facing summary of a sweep or adjustment where
// some items failed. Successful items stay committed.
type PartialFailureError struct {
	Operation   string
	FailedItems []string
	TotalFailed bool
}

func (e *PartialFailureError) Error() string {
	var parts []string
	if len(e.FailedItems) > 0 {
		parts = append(parts, fmt.Sprintf("failed to %s items: %s", e.Operation, strings.Join(e.FailedItems, ", ")))
	}
	if e.TotalFailed {
		parts = append(parts, "contract amount was not updated")
	}
	if len(parts) == 0 {
		return e.Operation + " partially failed"
	}
	return strings.Join(parts, "; ")
}

// SaveAll persists every item of the session in list order.
//
// A draft whose category fails validation aborts the sweep; items processed before
// it stay committed. Any other per-item failure is recorded and the sweep moves on.
// The contract amount is pushed once at the end.
func (s *Session) SaveAll(ctx context.Context) (*SweepReport, error) {
	if s.closed.Load() {
		return nil, ErrStaleSession
	}
	done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	correlationID := uuid.NewString()
	ctx = utils.SetCorrelationIdInContext(ctx, correlationID)
	ctx = utils.SetContractIdInContext(ctx, s.ContractID)
	ctx, span := tracer.Start(ctx, "SaveAll")
	defer span.End()
	span.SetAttributes(
		attribute.Int("contract.id", s.ContractID),
		attribute.String("correlation.id", correlationID),
	)

	report := &SweepReport{ContractID: s.ContractID, CorrelationID: correlationID}
	s.sweep(ctx, report)

	if !report.Stale && report.Aborted == nil {
		report.Total = s.Total()
		if err := s.Gateway.UpdateContractAmount(ctx, s.ContractID, report.Total); err != nil {
			config.LogError(s.Logger, "saveAll.go", "SaveAll", "Gateway.UpdateContractAmount", map[string]interface{}{
				"contract_id":    s.ContractID,
				"correlation_id": correlationID,
				"total":          report.Total.String(),
			}, err)
			report.TotalErr = err
		}
	}

	if err := report.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	return report, nil
}

func (s *Session) sweep(ctx context.Context, report *SweepReport) {
	s.mu.Lock()
	order := make([]contract.RecordID, 0, len(s.items))
	for _, it := range s.items {
		order = append(order, it.ID)
	}
	s.mu.Unlock()

	for i, id := range order {
		if s.closed.Load() {
			report.Stale = true
			return
		}
		item, ok := s.Item(id)
		if !ok {
			// deleted while the sweep was running
			continue
		}

		var res ItemResult
		if id.IsDraft() {
			res = s.saveDraft(ctx, item, report.CorrelationID)
		} else {
			res = s.savePersisted(ctx, item, report.CorrelationID)
		}
		if errors.Is(res.Err, ErrStaleSession) {
			report.Stale = true
			return
		}
		report.Results = append(report.Results, res)

		if res.abort {
			report.Aborted = res.Err
			for _, rest := range order[i+1:] {
				if skipped, ok := s.Item(rest); ok {
					report.Results = append(report.Results, ItemResult{ItemID: rest, ItemNumber: skipped.Number, Outcome: ItemSkipped})
				}
			}
			s.Logger.WithFields(logrus.Fields{
				"contract_id":    s.ContractID,
				"correlation_id": report.CorrelationID,
				"item_number":    item.Number,
			}).Warn("save sweep aborted: " + res.Err.Error())
			return
		}
	}
}

func (s *Session) saveDraft(ctx context.Context, item contract.Item, correlationID string) ItemResult {
	res := ItemResult{ItemID: item.ID, ItemNumber: item.Number}
	tempID := item.ID

	if item.Category.IsSet() {
		if v := s.Validate(item.Category, tempID); !v.Valid {
			res.Outcome = ItemFailed
			res.Err = v.Err(item.Category, item.Number)
			res.abort = true
			return res
		}
	}

	created, err := s.Gateway.CreateItem(ctx, s.ContractID, item.Input())
	if err != nil {
		s.logItemError("SaveAll", "Gateway.CreateItem", item, correlationID, err)
		res.Outcome = ItemFailed
		res.Err = fmt.Errorf("failed to create item %s: %w", item.Number, err)
		return res
	}
	if s.closed.Load() {
		res.Err = ErrStaleSession
		return res
	}
	realID := contract.Persisted(created.ID)
	if _, ok := s.Item(tempID); !ok {
		return s.orphaned(res, item, created.ID, correlationID)
	}

	// Allocations entered in the dialog before the item was saved. A pending pair
	// equal to the item category is covered by the auto-created allocation.
	var pending []contract.Allocation
	for _, a := range s.store.Get(tempID) {
		if item.Category.IsSet() && a.Pair == item.Category {
			continue
		}
		pending = append(pending, a)
	}

	var allocErr error
	var auto *contract.Allocation
	if item.Category.IsSet() {
		a := contract.Allocation{ItemID: realID, ContractID: s.ContractID, Pair: item.Category}
		m, err := s.Gateway.CreateAllocation(ctx, created.ID, a.Input())
		if err != nil {
			s.logItemError("SaveAll", "Gateway.CreateAllocation", item, correlationID, err)
			allocErr = fmt.Errorf("item %s was created but its allocation failed: %w", item.Number, err)
		} else {
			a = contract.AllocationFromModel(m)
			a.ContractID = s.ContractID
			auto = &a
		}
		if s.closed.Load() {
			res.Err = ErrStaleSession
			return res
		}
	}

	s.mu.Lock()
	i := s.indexLocked(tempID)
	if i < 0 {
		s.mu.Unlock()
		s.store.Remove(tempID)
		return s.orphaned(res, item, created.ID, correlationID)
	}
	entry := make([]contract.Allocation, 0, len(pending)+1)
	if auto != nil {
		entry = append(entry, *auto)
	}
	entry = append(entry, pending...)
	s.store.Set(tempID, entry)
	s.store.RemapID(tempID, realID)
	s.items[i].ID = realID
	s.mu.Unlock()

	res.ItemID = realID
	res.TempID = tempID
	item.ID = realID

	replayErr := s.flushPending(ctx, item, correlationID)
	switch {
	case allocErr != nil:
		res.Outcome = ItemFailed
		res.Err = allocErr
	case replayErr != nil:
		res.Outcome = ItemFailed
		res.Err = replayErr
	default:
		res.Outcome = ItemCreated
		s.logItemSaved(item, tempID, correlationID)
	}
	return res
}

// orphaned reports a backend item created for a draft that left the grid meanwhile.
// Nothing is written to the store, so the validator never sees its allocations.
func (s *Session) orphaned(res ItemResult, item contract.Item, backendID int, correlationID string) ItemResult {
	err := fmt.Errorf("item %s was deleted while it was being saved; backend item %d has no grid row", item.Number, backendID)
	s.logItemError("SaveAll", "orphaned", item, correlationID, err)
	res.ItemID = contract.Persisted(backendID)
	res.TempID = item.ID
	res.Outcome = ItemOrphaned
	res.Err = err
	return res
}

func (s *Session) savePersisted(ctx context.Context, item contract.Item, correlationID string) ItemResult {
	res := ItemResult{ItemID: item.ID, ItemNumber: item.Number}
	backendID, _ := item.ID.PersistedID()

	// A category the item does not already own through an allocation is a new claim.
	claims := item.Category.IsSet()
	current := s.store.Get(item.ID)
	for _, a := range current {
		if a.Pair == item.Category {
			claims = false
		}
	}
	if claims {
		if v := s.Validate(item.Category, item.ID); !v.Valid {
			res.Outcome = ItemFailed
			res.Err = v.Err(item.Category, item.Number)
			res.abort = true
			return res
		}
	}

	if _, err := s.Gateway.UpdateItem(ctx, s.ContractID, backendID, item.Input()); err != nil {
		s.logItemError("SaveAll", "Gateway.UpdateItem", item, correlationID, err)
		res.Outcome = ItemFailed
		res.Err = fmt.Errorf("failed to update item %s: %w", item.Number, err)
		return res
	}
	if s.closed.Load() {
		res.Err = ErrStaleSession
		return res
	}

	if item.Category.IsSet() && len(current) == 0 {
		a := contract.Allocation{ItemID: item.ID, ContractID: s.ContractID, Pair: item.Category}
		m, err := s.Gateway.CreateAllocation(ctx, backendID, a.Input())
		if err != nil {
			s.logItemError("SaveAll", "Gateway.CreateAllocation", item, correlationID, err)
			res.Outcome = ItemFailed
			res.Err = fmt.Errorf("failed to create allocation for item %s: %w", item.Number, err)
			return res
		}
		if s.closed.Load() {
			res.Err = ErrStaleSession
			return res
		}
		a = contract.AllocationFromModel(m)
		a.ContractID = s.ContractID
		s.store.Append(item.ID, a)
	}

	if err := s.flushPending(ctx, item, correlationID); err != nil {
		res.Outcome = ItemFailed
		res.Err = err
		return res
	}
	res.Outcome = ItemUpdated
	s.logItemSaved(item, contract.RecordID{}, correlationID)
	return res
}

// flushPending creates the item's allocations that only exist locally and swaps
// each for its persisted record. The first failure is returned after every
// pending allocation was tried.
func (s *Session) flushPending(ctx context.Context, item contract.Item, correlationID string) error {
	backendID, ok := item.ID.PersistedID()
	if !ok {
		return nil
	}
	var firstErr error
	for _, a := range s.store.Get(item.ID) {
		if !a.ID.IsDraft() {
			continue
		}
		if v := s.Validate(a.Pair, item.ID); !v.Valid {
			err := v.Err(a.Pair, item.Number)
			s.logItemError("SaveAll", "Validate pending allocation", item, correlationID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m, err := s.Gateway.CreateAllocation(ctx, backendID, a.Input())
		if err != nil {
			s.logItemError("SaveAll", "Gateway.CreateAllocation", item, correlationID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to create allocation for item %s: %w", item.Number, err)
			}
			continue
		}
		if s.closed.Load() {
			return ErrStaleSession
		}
		persisted := contract.AllocationFromModel(m)
		persisted.ContractID = s.ContractID
		persisted.ItemID = item.ID
		s.replaceAllocation(item.ID, a.ID, persisted)
	}
	return firstErr
}

func (s *Session) replaceAllocation(itemID contract.RecordID, oldID contract.RecordID, a contract.Allocation) {
	list := s.store.Get(itemID)
	for i := range list {
		if list[i].ID == oldID {
			list[i] = a
		}
	}
	s.store.Set(itemID, list)
}

func (s *Session) logItemSaved(item contract.Item, tempID contract.RecordID, correlationID string) {
	fields := logrus.Fields{
		"contract_id":    s.ContractID,
		"item_id":        item.ID.String(),
		"item_number":    item.Number,
		"correlation_id": correlationID,
	}
	if !tempID.IsZero() {
		fields["temp_id"] = tempID.String()
	}
	s.Logger.WithFields(fields).Info("contract item saved")
}
