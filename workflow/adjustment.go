package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/contract"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const adjustmentPlaces = 4

var hundred = decimal.NewFromInt(100)

type AdjustmentResult struct {
	ItemID     contract.RecordID
	ItemNumber string
	From       decimal.Decimal
	To         decimal.Decimal
	Err        error
}

type AdjustmentReport struct {
	ContractID int
	// Operation is "adjust" or "reset".
	Operation  string
	Percentage decimal.Decimal
	Results    []AdjustmentResult
	Total      decimal.Decimal
	TotalErr   error
	Stale      bool
}

func (r *AdjustmentReport) FailedItems() []string {
	var failed []string
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res.ItemNumber)
		}
	}
	return failed
}

func (r *AdjustmentReport) Err() error {
	if r == nil {
		return nil
	}
	if r.Stale {
		return ErrStaleSession
	}
	failed := r.FailedItems()
	if len(failed) == 0 && r.TotalErr == nil {
		return nil
	}
	return &PartialFailureError{Operation: r.Operation, FailedItems: failed, TotalFailed: r.TotalErr != nil}
}

// AdjustedAmount is original * (1 + pct/100) rounded to four places.
func AdjustedAmount(original decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return original.Mul(decimal.NewFromInt(1).Add(pct.Div(hundred))).Round(adjustmentPlaces)
}

// HasAdjustment reports whether a markup is currently applied.
func (s *Session) HasAdjustment() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshot) > 0
}

// ApplyAdjustment marks every persisted item up by pct percent of its amount at
// the time of the first adjustment. Repeated calls derive from the same original
// amounts until ResetAdjustment. Items updated before a failure keep their new amount.
func (s *Session) ApplyAdjustment(ctx context.Context, pct decimal.Decimal) (*AdjustmentReport, error) {
	if s.closed.Load() {
		return nil, ErrStaleSession
	}
	done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	ctx, span := tracer.Start(ctx, "ApplyAdjustment")
	defer span.End()
	span.SetAttributes(attribute.Int("contract.id", s.ContractID), attribute.String("adjustment.percentage", pct.String()))

	type target struct {
		item     contract.Item
		original decimal.Decimal
	}
	s.mu.Lock()
	takeAll := len(s.snapshot) == 0
	var targets []target
	for _, it := range s.items {
		if !it.ID.IsPersisted() {
			continue
		}
		original, ok := s.snapshot[it.ID]
		if takeAll || !ok {
			original = it.Amount
			s.snapshot[it.ID] = original
		}
		targets = append(targets, target{item: it, original: original})
	}
	s.mu.Unlock()

	report := &AdjustmentReport{ContractID: s.ContractID, Operation: "adjust", Percentage: pct}
	for _, t := range targets {
		res := s.pushAmount(ctx, t.item, AdjustedAmount(t.original, pct))
		if res.Err == ErrStaleSession {
			report.Stale = true
			break
		}
		report.Results = append(report.Results, res)
	}
	s.finishAdjustment(ctx, report)

	if err := report.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	return report, nil
}

// ResetAdjustment restores every snapshotted item to its original amount and
// clears the snapshot. Entries whose update failed stay so the reset can be retried.
func (s *Session) ResetAdjustment(ctx context.Context) (*AdjustmentReport, error) {
	if s.closed.Load() {
		return nil, ErrStaleSession
	}
	done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	ctx, span := tracer.Start(ctx, "ResetAdjustment")
	defer span.End()
	span.SetAttributes(attribute.Int("contract.id", s.ContractID))

	type target struct {
		item     contract.Item
		original decimal.Decimal
	}
	s.mu.Lock()
	var targets []target
	for _, it := range s.items {
		if original, ok := s.snapshot[it.ID]; ok {
			targets = append(targets, target{item: it, original: original})
		}
	}
	// entries of deleted items
	for id := range s.snapshot {
		if s.indexLocked(id) < 0 {
			delete(s.snapshot, id)
		}
	}
	s.mu.Unlock()

	report := &AdjustmentReport{ContractID: s.ContractID, Operation: "reset"}
	if len(targets) == 0 {
		report.Total = s.Total()
		return report, nil
	}
	for _, t := range targets {
		res := s.pushAmount(ctx, t.item, t.original)
		if res.Err == ErrStaleSession {
			report.Stale = true
			break
		}
		report.Results = append(report.Results, res)
		if res.Err == nil {
			s.mu.Lock()
			delete(s.snapshot, t.item.ID)
			s.mu.Unlock()
		}
	}
	s.finishAdjustment(ctx, report)

	if err := report.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	return report, nil
}

func (s *Session) pushAmount(ctx context.Context, item contract.Item, amount decimal.Decimal) AdjustmentResult {
	res := AdjustmentResult{ItemID: item.ID, ItemNumber: item.Number, From: item.Amount, To: amount}
	backendID, _ := item.ID.PersistedID()

	input := item.Input()
	input.TotalAmount = amount
	if _, err := s.Gateway.UpdateItem(ctx, s.ContractID, backendID, input); err != nil {
		s.logItemError("Adjustment", "Gateway.UpdateItem", item, "", err)
		res.Err = fmt.Errorf("failed to update amount of item %s: %w", item.Number, err)
		return res
	}
	if s.closed.Load() {
		res.Err = ErrStaleSession
		return res
	}
	s.mu.Lock()
	if i := s.indexLocked(item.ID); i >= 0 {
		s.items[i].Amount = amount
	}
	s.mu.Unlock()
	return res
}

func (s *Session) finishAdjustment(ctx context.Context, report *AdjustmentReport) {
	if report.Stale {
		return
	}
	report.Total = s.Total()
	if err := s.Gateway.UpdateContractAmount(ctx, s.ContractID, report.Total); err != nil {
		config.LogError(s.Logger, "adjustment.go", report.Operation, "Gateway.UpdateContractAmount", map[string]interface{}{
			"contract_id": s.ContractID,
			"total":       report.Total.String(),
		}, err)
		report.TotalErr = err
	}
}
