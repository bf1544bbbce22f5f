package workflow

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/mmdatafocus/contracts_backend/contract"
	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var errBackendDown = errors.New("backend unavailable")

// fakeGateway is an in-memory backend that enforces the contract/pair unique index.
type fakeGateway struct {
	mu          sync.Mutex
	nextID      int
	items       map[int]*models.ContractItem
	allocations map[int]*models.ContractItemAllocation
	amounts     map[int]decimal.Decimal

	failCreateItem  map[string]bool
	failUpdateItem  map[string]bool
	failCreateAlloc map[contract.Pair]bool
	failAmount      bool

	// createItemHook runs before CreateItem answers.
	createItemHook func()

	calls []string

	costCodes   []*models.CostCode
	costTypes   []*models.CostType
	budgetLines []*models.BudgetLine
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:          100,
		items:           map[int]*models.ContractItem{},
		allocations:     map[int]*models.ContractItemAllocation{},
		amounts:         map[int]decimal.Decimal{},
		failCreateItem:  map[string]bool{},
		failUpdateItem:  map[string]bool{},
		failCreateAlloc: map[contract.Pair]bool{},
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (f *fakeGateway) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

// seedItem stores a persisted item and returns it.
func (f *fakeGateway) seedItem(contractID int, number string, amount string, pair contract.Pair) *models.ContractItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := &models.ContractItem{
		ID:          f.nextID,
		ContractId:  contractID,
		ItemNumber:  number,
		TotalAmount: decimal.RequireFromString(amount),
		Status:      models.ContractItemStatusOpen,
	}
	if pair.IsSet() {
		m.CostCodeId = utils.NilIfEmpty(pair.CostCodeID)
		m.CostTypeId = utils.NilIfEmpty(pair.CostTypeID)
	}
	f.items[m.ID] = m
	return m
}

func (f *fakeGateway) seedAllocation(itemID int, pair contract.Pair) *models.ContractItemAllocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a := &models.ContractItemAllocation{
		ID:             f.nextID,
		ContractId:     f.items[itemID].ContractId,
		ContractItemId: itemID,
		CostCodeId:     pair.CostCodeID,
		CostTypeId:     pair.CostTypeID,
	}
	f.allocations[a.ID] = a
	return a
}

func (f *fakeGateway) itemAmount(itemID int) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[itemID].TotalAmount
}

func (f *fakeGateway) allocationsOf(itemID int) []*models.ContractItemAllocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*models.ContractItemAllocation
	for _, a := range f.allocations {
		if a.ContractItemId == itemID {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (f *fakeGateway) ListItems(ctx context.Context, contractID int) ([]*models.ContractItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListItems")
	var list []*models.ContractItem
	for _, it := range f.items {
		if it.ContractId == contractID {
			copied := *it
			list = append(list, &copied)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *fakeGateway) CreateItem(ctx context.Context, contractID int, input *models.NewContractItem) (*models.ContractItem, error) {
	if f.createItemHook != nil {
		f.createItemHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateItem")
	if f.failCreateItem[input.ItemNumber] {
		return nil, errBackendDown
	}
	f.nextID++
	m := &models.ContractItem{
		ID:          f.nextID,
		ContractId:  contractID,
		ItemNumber:  input.ItemNumber,
		Description: input.Description,
		TotalAmount: input.TotalAmount,
		Notes:       input.Notes,
		Status:      input.Status,
		CostCodeId:  input.CostCodeId,
		CostTypeId:  input.CostTypeId,
	}
	f.items[m.ID] = m
	copied := *m
	return &copied, nil
}

func (f *fakeGateway) UpdateItem(ctx context.Context, contractID int, itemID int, input *models.NewContractItem) (*models.ContractItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateItem")
	m, ok := f.items[itemID]
	if !ok || m.ContractId != contractID {
		return nil, utils.ErrorRecordNotFound
	}
	if f.failUpdateItem[m.ItemNumber] {
		return nil, errBackendDown
	}
	m.ItemNumber = input.ItemNumber
	m.Description = input.Description
	m.TotalAmount = input.TotalAmount
	m.Notes = input.Notes
	m.CostCodeId = input.CostCodeId
	m.CostTypeId = input.CostTypeId
	copied := *m
	return &copied, nil
}

func (f *fakeGateway) DeleteItem(ctx context.Context, contractID int, itemID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteItem")
	if _, ok := f.items[itemID]; !ok {
		return utils.ErrorRecordNotFound
	}
	delete(f.items, itemID)
	for id, a := range f.allocations {
		if a.ContractItemId == itemID {
			delete(f.allocations, id)
		}
	}
	return nil
}

func (f *fakeGateway) ListAllocations(ctx context.Context, itemID int) ([]*models.ContractItemAllocation, error) {
	list := f.allocationsOf(itemID)
	f.mu.Lock()
	f.record("ListAllocations")
	f.mu.Unlock()
	out := make([]*models.ContractItemAllocation, 0, len(list))
	for _, a := range list {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeGateway) CreateAllocation(ctx context.Context, itemID int, input *models.NewContractItemAllocation) (*models.ContractItemAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateAllocation")
	pair := contract.Pair{CostCodeID: input.CostCodeId, CostTypeID: input.CostTypeId}
	if f.failCreateAlloc[pair] {
		return nil, errBackendDown
	}
	item, ok := f.items[itemID]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	for _, a := range f.allocations {
		if a.ContractId == item.ContractId && a.CostCodeId == pair.CostCodeID && a.CostTypeId == pair.CostTypeID {
			return nil, models.ErrDuplicateAllocation
		}
	}
	f.nextID++
	a := &models.ContractItemAllocation{
		ID:             f.nextID,
		ContractId:     item.ContractId,
		ContractItemId: itemID,
		CostCodeId:     pair.CostCodeID,
		CostTypeId:     pair.CostTypeID,
		Notes:          input.Notes,
	}
	f.allocations[a.ID] = a
	copied := *a
	return &copied, nil
}

func (f *fakeGateway) DeleteAllocation(ctx context.Context, allocationID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteAllocation")
	if _, ok := f.allocations[allocationID]; !ok {
		return utils.ErrorRecordNotFound
	}
	delete(f.allocations, allocationID)
	return nil
}

func (f *fakeGateway) UpdateContractAmount(ctx context.Context, contractID int, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateContractAmount")
	if f.failAmount {
		return errBackendDown
	}
	f.amounts[contractID] = amount
	return nil
}

func (f *fakeGateway) contractAmount(contractID int) (decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amount, ok := f.amounts[contractID]
	return amount, ok
}

// catalog.Source

func (f *fakeGateway) ListCostCodes(ctx context.Context) ([]*models.CostCode, error) {
	return f.costCodes, nil
}

func (f *fakeGateway) ListCostTypes(ctx context.Context) ([]*models.CostType, error) {
	return f.costTypes, nil
}

func (f *fakeGateway) ListProjectCostCodes(ctx context.Context, projectID int) ([]*models.CostCode, error) {
	return nil, nil
}

func (f *fakeGateway) ListBudgetLines(ctx context.Context, projectID int) ([]*models.BudgetLine, error) {
	var lines []*models.BudgetLine
	for _, l := range f.budgetLines {
		if l.ProjectId == projectID {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func pair(cc, ct int) contract.Pair {
	return contract.Pair{CostCodeID: cc, CostTypeID: ct}
}

func openSession(t interface{ Fatalf(string, ...interface{}) }, gw *fakeGateway, contractID int) *Session {
	s := NewSession(contractID, 1, gw, quietLogger())
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}
