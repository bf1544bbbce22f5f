package workflow

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/mmdatafocus/contracts_backend/allocation"
	"github.com/mmdatafocus/contracts_backend/catalog"
	"github.com/mmdatafocus/contracts_backend/contract"
	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/shopspring/decimal"
)

func TestSecondItemWithSamePairIsRejected(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	s := openSession(t, gw, 1)

	first, err := s.AddDraftItem(DraftItemInput{Number: "0001", Amount: decimal.NewFromInt(500), Category: pair(100, 7)})
	if err != nil {
		t.Fatalf("AddDraftItem 0001: %v", err)
	}
	if _, err := s.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	saved, ok := s.Item(findByNumber(t, s, "0001"))
	if !ok || !saved.ID.IsPersisted() {
		t.Fatalf("expected 0001 to be persisted, got %+v (draft was %s)", saved, first.ID)
	}
	allocs := s.Store().Get(saved.ID)
	if len(allocs) != 1 || allocs[0].Pair != pair(100, 7) {
		t.Fatalf("expected one allocation for (100,7), got %+v", allocs)
	}

	_, err = s.AddDraftItem(DraftItemInput{Number: "0002", Category: pair(100, 7)})
	var verr *allocation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.ConflictingItemNumber != "0001" {
		t.Fatalf("expected conflict with 0001, got %q", verr.ConflictingItemNumber)
	}
	if n := gw.callCount("CreateAllocation"); n != 1 {
		t.Fatalf("expected exactly one allocation create, got %d", n)
	}
}

func TestSaveAllRemapsDraft(t *testing.T) {
	gw := newFakeGateway()
	s := openSession(t, gw, 1)

	draft, err := s.AddDraftItem(DraftItemInput{Number: "0001", Category: pair(200, 3)})
	if err != nil {
		t.Fatalf("AddDraftItem: %v", err)
	}
	report, err := s.SaveAll(context.Background())
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Outcome != ItemCreated {
		t.Fatalf("unexpected results: %+v", report.Results)
	}
	realID := report.Results[0].ItemID
	if report.Results[0].TempID != draft.ID || !realID.IsPersisted() {
		t.Fatalf("expected %s remapped to a persisted id, got %+v", draft.ID, report.Results[0])
	}
	if got := s.Store().Get(draft.ID); len(got) != 0 {
		t.Fatalf("temp id still holds allocations: %+v", got)
	}
	got := s.Store().Get(realID)
	if len(got) != 1 || got[0].Pair != pair(200, 3) || got[0].ItemID != realID {
		t.Fatalf("unexpected allocations at real id: %+v", got)
	}
	if _, ok := s.Item(draft.ID); ok {
		t.Fatalf("draft id still present in the item list")
	}
}

func TestSaveAllContinuesAfterItemFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.failCreateItem["0002"] = true
	s := openSession(t, gw, 1)

	var drafts []contract.Item
	for i, number := range []string{"0001", "0002", "0003"} {
		it, err := s.AddDraftItem(DraftItemInput{Number: number, Amount: decimal.NewFromInt(10), Category: pair(i+1, 1)})
		if err != nil {
			t.Fatalf("AddDraftItem %s: %v", number, err)
		}
		drafts = append(drafts, it)
	}

	report, err := s.SaveAll(context.Background())
	var partial *PartialFailureError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialFailureError, got %v", err)
	}
	if !reflect.DeepEqual(partial.FailedItems, []string{"0002"}) {
		t.Fatalf("expected only 0002 to fail, got %v", partial.FailedItems)
	}
	if err.Error() != "failed to save items: 0002" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	if _, ok := s.Item(drafts[1].ID); !ok {
		t.Fatalf("failed item should keep its temporary id %s", drafts[1].ID)
	}
	for _, i := range []int{0, 2} {
		res := report.Results[i]
		if res.Outcome != ItemCreated || !res.ItemID.IsPersisted() {
			t.Fatalf("item %s: expected created, got %+v", res.ItemNumber, res)
		}
		if len(s.Store().Get(res.ItemID)) != 1 {
			t.Fatalf("item %s: expected one allocation", res.ItemNumber)
		}
	}
	amount, ok := gw.contractAmount(1)
	if !ok || !amount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected contract amount 30, got %s (pushed=%v)", amount, ok)
	}
}

func TestGridRejectsSecondDraftClaimingPair(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	s := openSession(t, gw, 1)

	first, err := s.AddDraftItem(DraftItemInput{Number: "0001", Category: pair(5, 5)})
	if err != nil {
		t.Fatalf("AddDraftItem 0001: %v", err)
	}
	var verr *allocation.ValidationError
	if _, err := s.AddDraftItem(DraftItemInput{Number: "0002", Category: pair(5, 5)}); !errors.As(err, &verr) || verr.ConflictingItemNumber != "0001" {
		t.Fatalf("expected 0002 to be rejected against 0001, got %v", err)
	}

	third, err := s.AddDraftItem(DraftItemInput{Number: "0003"})
	if err != nil {
		t.Fatalf("AddDraftItem 0003: %v", err)
	}
	if err := s.SetItemCategory(third.ID, pair(5, 5)); !errors.As(err, &verr) || verr.ItemNumber != "0003" {
		t.Fatalf("expected category edit on 0003 to be rejected, got %v", err)
	}
	if _, err := s.AddAllocation(ctx, third.ID, pair(5, 5), ""); !errors.As(err, &verr) {
		t.Fatalf("expected dialog allocation on 0003 to be rejected, got %v", err)
	}

	// The item under revision may keep its own pair.
	if err := s.SetItemCategory(first.ID, pair(5, 5)); err != nil {
		t.Fatalf("re-setting its own category: %v", err)
	}
	for _, row := range s.Rows(nil) {
		if row.ItemNumber != "0001" && row.CostCode != "" {
			t.Fatalf("only 0001 may show the pair, got %+v", row)
		}
	}
}

func TestSaveAllAbortsOnConflictFoundAtSaveTime(t *testing.T) {
	gw := newFakeGateway()
	// A legacy item whose category was never promoted to an allocation.
	gw.seedItem(1, "0001", "10", pair(5, 5))

	t.Setenv("ALLOCATION_LEGACY_SCAN", "false")
	s := openSession(t, gw, 1)
	second, err := s.AddDraftItem(DraftItemInput{Number: "0002", Category: pair(5, 5)})
	if err != nil {
		t.Fatalf("AddDraftItem 0002 with the legacy scan off: %v", err)
	}
	third, _ := s.AddDraftItem(DraftItemInput{Number: "0003", Category: pair(6, 6)})

	t.Setenv("ALLOCATION_LEGACY_SCAN", "true")
	s.validator = allocation.NewValidator(s.store)

	report, err := s.SaveAll(context.Background())
	var verr *allocation.ValidationError
	if !errors.As(err, &verr) || verr.ItemNumber != "0001" || verr.ConflictingItemNumber != "0002" {
		t.Fatalf("expected 0001 to conflict with 0002, got %v", err)
	}
	if report.Aborted == nil || len(report.Results) != 3 {
		t.Fatalf("expected an aborted sweep over three items, got %+v", report)
	}
	if report.Results[0].Outcome != ItemFailed {
		t.Fatalf("first item should fail validation: %+v", report.Results[0])
	}
	for i, id := range []contract.RecordID{second.ID, third.ID} {
		if res := report.Results[i+1]; res.Outcome != ItemSkipped || res.ItemID != id {
			t.Fatalf("item %d should be skipped: %+v", i+2, res)
		}
	}
	if n := gw.callCount("CreateItem") + gw.callCount("UpdateItem") + gw.callCount("CreateAllocation"); n != 0 {
		t.Fatalf("nothing may be written by an aborted sweep, got %v", gw.calls)
	}
	if _, ok := gw.contractAmount(1); ok {
		t.Fatalf("contract amount must not be pushed by an aborted sweep")
	}
}

func TestSaveAllReplaysDialogAllocations(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	s := openSession(t, gw, 1)

	draft, err := s.AddDraftItem(DraftItemInput{Number: "0001", Category: pair(1, 1)})
	if err != nil {
		t.Fatalf("AddDraftItem: %v", err)
	}
	for _, p := range []contract.Pair{pair(1, 1), pair(1, 2)} {
		if _, err := s.AddAllocation(ctx, draft.ID, p, ""); err != nil {
			t.Fatalf("AddAllocation %v: %v", p, err)
		}
	}
	if n := gw.callCount("CreateAllocation"); n != 0 {
		t.Fatalf("draft allocations must stay local, got %d creates", n)
	}

	report, err := s.SaveAll(ctx)
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	realID := report.Results[0].ItemID
	backendID, _ := realID.PersistedID()
	if got := gw.allocationsOf(backendID); len(got) != 2 {
		t.Fatalf("expected 2 backend allocations, got %d", len(got))
	}
	local := s.Store().Get(realID)
	if len(local) != 2 {
		t.Fatalf("expected 2 local allocations, got %+v", local)
	}
	for _, a := range local {
		if !a.ID.IsPersisted() {
			t.Fatalf("allocation %s was not replaced by its persisted record", a.ID)
		}
	}
	rows := s.Rows(nil)
	if rows[0].CostCode != allocation.MultipleLabel || rows[0].CostType != allocation.MultipleLabel {
		t.Fatalf("expected Multiple summary, got %+v", rows[0])
	}
}

func TestSaveAllCreatesMissingAllocationForPersistedItem(t *testing.T) {
	gw := newFakeGateway()
	m := gw.seedItem(1, "0001", "100", contract.Pair{})
	s := openSession(t, gw, 1)

	if err := s.SetItemCategory(contract.Persisted(m.ID), pair(9, 9)); err != nil {
		t.Fatalf("SetItemCategory: %v", err)
	}
	report, err := s.SaveAll(context.Background())
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if report.Results[0].Outcome != ItemUpdated {
		t.Fatalf("unexpected result %+v", report.Results[0])
	}
	if got := gw.allocationsOf(m.ID); len(got) != 1 || got[0].CostCodeId != 9 {
		t.Fatalf("expected allocation (9,9), got %+v", got)
	}

	// A second sweep leaves the existing allocation alone.
	if _, err := s.SaveAll(context.Background()); err != nil {
		t.Fatalf("second SaveAll: %v", err)
	}
	if n := gw.callCount("CreateAllocation"); n != 1 {
		t.Fatalf("expected one allocation create overall, got %d", n)
	}
}

func TestAllocationFailureLeavesItemPersistedAndUnclassified(t *testing.T) {
	gw := newFakeGateway()
	gw.failCreateAlloc[pair(4, 4)] = true
	s := openSession(t, gw, 1)

	if _, err := s.AddDraftItem(DraftItemInput{Number: "0001", Category: pair(4, 4)}); err != nil {
		t.Fatalf("AddDraftItem: %v", err)
	}
	report, err := s.SaveAll(context.Background())
	if err == nil {
		t.Fatalf("expected partial failure")
	}
	res := report.Results[0]
	if res.Outcome != ItemFailed || !res.ItemID.IsPersisted() {
		t.Fatalf("expected persisted but failed item, got %+v", res)
	}
	if len(s.Store().Get(res.ItemID)) != 0 {
		t.Fatalf("item should have no allocations")
	}

	// The next sweep creates the missing allocation.
	delete(gw.failCreateAlloc, pair(4, 4))
	if _, err := s.SaveAll(context.Background()); err != nil {
		t.Fatalf("retry SaveAll: %v", err)
	}
	if len(s.Store().Get(res.ItemID)) != 1 {
		t.Fatalf("expected allocation after retry")
	}
}

func TestSaveAllRejectsConcurrentSweep(t *testing.T) {
	gw := newFakeGateway()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gw.createItemHook = func() {
		once.Do(func() { close(started) })
		<-release
	}
	s := openSession(t, gw, 1)
	if _, err := s.AddDraftItem(DraftItemInput{Number: "0001"}); err != nil {
		t.Fatalf("AddDraftItem: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.SaveAll(context.Background())
		done <- err
	}()
	<-started

	if _, err := s.SaveAll(context.Background()); !errors.Is(err, ErrSaveInProgress) {
		t.Fatalf("expected ErrSaveInProgress, got %v", err)
	}
	if _, err := s.ApplyAdjustment(context.Background(), decimal.NewFromInt(5)); !errors.Is(err, ErrSaveInProgress) {
		t.Fatalf("expected ErrSaveInProgress for adjustment, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if n := gw.callCount("CreateItem"); n != 1 {
		t.Fatalf("expected one create, got %d", n)
	}
}

type fakeLocker struct {
	held     map[int]bool
	released int
}

func (l *fakeLocker) Acquire(ctx context.Context, contractID int) (func(context.Context), error) {
	if l.held[contractID] {
		return nil, ErrSaveInProgress
	}
	l.held[contractID] = true
	return func(context.Context) {
		l.held[contractID] = false
		l.released++
	}, nil
}

func TestSaveAllUsesSweepLocker(t *testing.T) {
	gw := newFakeGateway()
	s := openSession(t, gw, 1)
	locker := &fakeLocker{held: map[int]bool{1: true}}
	s.Locker = locker

	if _, err := s.SaveAll(context.Background()); !errors.Is(err, ErrSaveInProgress) {
		t.Fatalf("expected ErrSaveInProgress while another process holds the lock, got %v", err)
	}
	locker.held[1] = false
	if _, err := s.SaveAll(context.Background()); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if locker.released != 1 || locker.held[1] {
		t.Fatalf("lock was not released: %+v", locker)
	}
}

func TestSaveAllDiscardsResultsAfterClose(t *testing.T) {
	gw := newFakeGateway()
	s := openSession(t, gw, 1)
	gw.createItemHook = s.Close
	draft, _ := s.AddDraftItem(DraftItemInput{Number: "0001", Category: pair(1, 1)})

	report, err := s.SaveAll(context.Background())
	if !errors.Is(err, ErrStaleSession) || report == nil || !report.Stale {
		t.Fatalf("expected stale report, got %+v %v", report, err)
	}
	if _, ok := s.Item(draft.ID); !ok {
		t.Fatalf("closed session must not be remapped")
	}
	if gw.callCount("CreateAllocation") != 0 || gw.callCount("UpdateContractAmount") != 0 {
		t.Fatalf("no further calls expected after close: %v", gw.calls)
	}
	if _, err := s.AddDraftItem(DraftItemInput{}); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession on a closed session, got %v", err)
	}
}

func TestSaveAllReportsDraftDeletedDuringCreate(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	s := openSession(t, gw, 1)
	draft, _ := s.AddDraftItem(DraftItemInput{Number: "0001", Category: pair(1, 1)})
	if _, err := s.AddAllocation(ctx, draft.ID, pair(2, 2), ""); err != nil {
		t.Fatalf("AddAllocation: %v", err)
	}
	gw.createItemHook = func() { _ = s.DeleteItem(ctx, draft.ID) }

	report, err := s.SaveAll(ctx)
	var partial *PartialFailureError
	if !errors.As(err, &partial) || !reflect.DeepEqual(partial.FailedItems, []string{"0001"}) {
		t.Fatalf("expected 0001 to be reported, got %v", err)
	}
	res := report.Results[0]
	if res.Outcome != ItemOrphaned || !res.ItemID.IsPersisted() || res.TempID != draft.ID {
		t.Fatalf("expected an orphaned backend item, got %+v", res)
	}
	if len(s.Items()) != 0 || len(s.Store().AllInContract(1)) != 0 {
		t.Fatalf("deleted draft must leave no items or allocations behind")
	}
	if n := gw.callCount("CreateAllocation"); n != 0 {
		t.Fatalf("no allocation may be created for an orphaned item, got %d", n)
	}
	gw.createItemHook = nil
	if _, err := s.AddDraftItem(DraftItemInput{Number: "0002", Category: pair(1, 1)}); err != nil {
		t.Fatalf("pair of the deleted draft must be free again: %v", err)
	}
}

func TestSaveAllReportsFailedContractAmount(t *testing.T) {
	gw := newFakeGateway()
	gw.failAmount = true
	gw.seedItem(1, "0001", "10", contract.Pair{})
	s := openSession(t, gw, 1)

	_, err := s.SaveAll(context.Background())
	var partial *PartialFailureError
	if !errors.As(err, &partial) || !partial.TotalFailed || len(partial.FailedItems) != 0 {
		t.Fatalf("expected total failure only, got %v", err)
	}
}

func TestUniquenessHoldsUnderRandomEdits(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	s := openSession(t, gw, 1)
	rng := rand.New(rand.NewSource(42))
	randomPair := func() contract.Pair { return pair(rng.Intn(3)+1, rng.Intn(3)+1) }
	randomItem := func() (contract.Item, bool) {
		items := s.Items()
		if len(items) == 0 {
			return contract.Item{}, false
		}
		return items[rng.Intn(len(items))], true
	}

	for step := 0; step < 400; step++ {
		switch rng.Intn(6) {
		case 0:
			in := DraftItemInput{Amount: decimal.NewFromInt(int64(rng.Intn(100)))}
			if rng.Intn(2) == 0 {
				in.Category = randomPair()
			}
			_, _ = s.AddDraftItem(in)
		case 1:
			if it, ok := randomItem(); ok {
				_ = s.SetItemCategory(it.ID, randomPair())
			}
		case 2:
			if it, ok := randomItem(); ok {
				_, _ = s.AddAllocation(ctx, it.ID, randomPair(), "")
			}
		case 3:
			if it, ok := randomItem(); ok {
				if allocs := s.ItemAllocations(it.ID); len(allocs) > 0 {
					_ = s.RemoveAllocation(ctx, it.ID, allocs[rng.Intn(len(allocs))].ID)
				}
			}
		case 4:
			_, _ = s.SaveAll(ctx)
		case 5:
			if it, ok := randomItem(); ok && rng.Intn(4) == 0 {
				_ = s.DeleteItem(ctx, it.ID)
			}
		}
		assertDisjointAllocations(t, step, s)
	}
}

// assertDisjointAllocations checks that no pair is resolved by two different items.
// A draft resolves its category together with its pending dialog allocations.
func assertDisjointAllocations(t *testing.T, step int, s *Session) {
	t.Helper()
	owner := map[contract.Pair]contract.RecordID{}
	for _, it := range s.Items() {
		resolved := map[contract.Pair]bool{}
		for _, a := range s.Store().Get(it.ID) {
			resolved[a.Pair] = true
		}
		switch {
		case it.ID.IsDraft() && it.Category.IsSet():
			resolved[it.Category] = true
		case len(resolved) == 0 && it.ID.IsPersisted() && it.Category.IsSet():
			resolved[it.Category] = true
		}
		for p := range resolved {
			if other, ok := owner[p]; ok && other != it.ID {
				t.Fatalf("step %d: pair %+v resolved by %s and %s", step, p, other, it.ID)
			}
			owner[p] = it.ID
		}
	}
}

func TestDeleteItem(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	m := gw.seedItem(1, "0001", "10", pair(1, 1))
	gw.seedAllocation(m.ID, pair(1, 1))
	s := openSession(t, gw, 1)
	draft, _ := s.AddDraftItem(DraftItemInput{Number: "0002"})

	if err := s.DeleteItem(ctx, draft.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if gw.callCount("DeleteItem") != 0 {
		t.Fatalf("deleting a draft must not reach the backend")
	}
	persisted := contract.Persisted(m.ID)
	if err := s.DeleteItem(ctx, persisted); err != nil {
		t.Fatalf("delete persisted: %v", err)
	}
	if len(s.Items()) != 0 || len(s.Store().Get(persisted)) != 0 {
		t.Fatalf("expected empty session, items=%+v", s.Items())
	}
	if err := s.DeleteItem(ctx, persisted); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestGenerateFromBudgetSkipsClaimedPairs(t *testing.T) {
	gw := newFakeGateway()
	m := gw.seedItem(1, "0001", "10", pair(1, 1))
	gw.seedAllocation(m.ID, pair(1, 1))
	s := openSession(t, gw, 1)
	if _, err := s.AddDraftItem(DraftItemInput{Number: "0002", Category: pair(2, 1)}); err != nil {
		t.Fatalf("AddDraftItem: %v", err)
	}

	cat := &catalog.Catalog{
		ProjectID: 1,
		CostCodes: []*models.CostCode{{ID: 3, Code: "03-100", Description: "Concrete", Status: models.CatalogStatusActive}},
		BudgetLines: []*models.BudgetLine{
			{ProjectId: 1, CostCodeId: 1, CostTypeId: 1},
			{ProjectId: 1, CostCodeId: 2, CostTypeId: 1},
			{ProjectId: 1, CostCodeId: 3, CostTypeId: 2},
			{ProjectId: 2, CostCodeId: 4, CostTypeId: 4},
		},
	}
	added, err := s.GenerateFromBudget(cat)
	if err != nil {
		t.Fatalf("GenerateFromBudget: %v", err)
	}
	if len(added) != 1 || added[0].Category != pair(3, 2) {
		t.Fatalf("expected one draft for (3,2), got %+v", added)
	}
	if added[0].Number != "0003" || added[0].Description != "Concrete" {
		t.Fatalf("unexpected generated item %+v", added[0])
	}
}

func TestLoadOrdersItemsByNumber(t *testing.T) {
	gw := newFakeGateway()
	gw.seedItem(1, "0010", "1", contract.Pair{})
	gw.seedItem(1, "0002", "1", contract.Pair{})
	gw.seedItem(2, "0001", "1", contract.Pair{})
	s := openSession(t, gw, 1)

	items := s.Items()
	if len(items) != 2 || items[0].Number != "0002" || items[1].Number != "0010" {
		t.Fatalf("unexpected order %+v", items)
	}
}

func findByNumber(t *testing.T, s *Session, number string) contract.RecordID {
	t.Helper()
	for _, it := range s.Items() {
		if it.Number == number {
			return it.ID
		}
	}
	t.Fatalf("item %s not found", number)
	return contract.RecordID{}
}
