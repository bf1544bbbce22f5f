package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mmdatafocus/contracts_backend/allocation"
	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/contract"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSaveInProgress is returned when a save sweep or adjustment is already running
	// for the contract.
	ErrSaveInProgress = errors.New("another save is in progress for this contract")
	// ErrStaleSession marks results for a contract that is no longer open; they are discarded.
	ErrStaleSession = errors.New("contract is no longer open")
	ErrItemNotFound = errors.New("item not found")
)

// Session is the item-editing session of one open contract. It owns the ordered
// item list, the allocation store and the adjustment snapshot.
type Session struct {
	ContractID int
	ProjectID  int

	Gateway Gateway
	Logger  *logrus.Logger
	// Locker serializes sweeps across processes; nil means in-process only.
	Locker SweepLocker

	store     *allocation.Store
	validator *allocation.Validator

	mu       sync.Mutex
	items    []contract.Item
	seq      int
	snapshot map[contract.RecordID]decimal.Decimal

	running sync.Mutex
	closed  atomic.Bool
}

func NewSession(contractID int, projectID int, gateway Gateway, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = config.GetLogger()
	}
	store := allocation.NewStore()
	return &Session{
		ContractID: contractID,
		ProjectID:  projectID,
		Gateway:    gateway,
		Logger:     logger,
		store:      store,
		validator:  allocation.NewValidator(store),
		snapshot:   make(map[contract.RecordID]decimal.Decimal),
	}
}

func (s *Session) Store() *allocation.Store { return s.store }

// Close ends the session; results of in-flight calls are no longer applied.
func (s *Session) Close() {
	s.closed.Store(true)
	s.mu.Lock()
	s.snapshot = make(map[contract.RecordID]decimal.Decimal)
	s.mu.Unlock()
}

func (s *Session) IsClosed() bool { return s.closed.Load() }

// Load replaces the session's items and allocations with the backend state.
// A failed allocation listing leaves that item with no allocations.
func (s *Session) Load(ctx context.Context) error {
	rows, err := s.Gateway.ListItems(ctx, s.ContractID)
	if err != nil {
		config.LogError(s.Logger, "contractSession.go", "Load", "ListItems", s.ContractID, err)
		return fmt.Errorf("failed to load contract items: %w", err)
	}
	items := make([]contract.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, contract.ItemFromModel(row))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return utils.CompareItemNumbers(items[i].Number, items[j].Number) < 0
	})

	loaded := make(map[contract.RecordID][]contract.Allocation, len(items))
	for _, it := range items {
		backendID, _ := it.ID.PersistedID()
		list, err := s.Gateway.ListAllocations(ctx, backendID)
		if err != nil {
			s.logItemError("Load", "ListAllocations", it, "", err)
			continue
		}
		allocs := make([]contract.Allocation, 0, len(list))
		for _, m := range list {
			a := contract.AllocationFromModel(m)
			a.ContractID = s.ContractID
			allocs = append(allocs, a)
		}
		loaded[it.ID] = allocs
	}

	if s.closed.Load() {
		return ErrStaleSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.store.Reset()
	for id, allocs := range loaded {
		s.store.Set(id, allocs)
	}
	return nil
}

// Items returns a copy of the items in list order.
func (s *Session) Items() []contract.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

func (s *Session) Item(id contract.RecordID) (contract.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return contract.Item{}, false
	}
	return s.items[i], true
}

// Total is the sum of every item amount in the session.
func (s *Session) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.Amount)
	}
	return total
}

// Validate runs the uniqueness check against the current session state.
func (s *Session) Validate(pair contract.Pair, exclude contract.RecordID) allocation.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked(pair, exclude)
}

func (s *Session) validateLocked(pair contract.Pair, exclude contract.RecordID) allocation.Result {
	return s.validator.Validate(s.ContractID, s.items, pair, exclude)
}

func (s *Session) itemsLocked() []contract.Item {
	out := make([]contract.Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Session) indexLocked(id contract.RecordID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) nextDraftLocked() contract.RecordID {
	s.seq++
	return contract.Draft(s.seq)
}

func (s *Session) itemNumbersLocked() []string {
	numbers := make([]string, 0, len(s.items))
	for _, it := range s.items {
		numbers = append(numbers, it.Number)
	}
	return numbers
}

func (s *Session) logItemError(funcName string, context string, item contract.Item, correlationID string, err error) {
	data := map[string]interface{}{
		"contract_id": s.ContractID,
		"item_id":     item.ID.String(),
		"item_number": item.Number,
	}
	if correlationID != "" {
		data["correlation_id"] = correlationID
	}
	config.LogError(s.Logger, "workflow", funcName, context, data, err)
}
