package contract

import (
	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/shopspring/decimal"
)

// Pair is a budget category. A pair is set only when both ids are non-zero.
type Pair struct {
	CostCodeID int `json:"cost_code_id"`
	CostTypeID int `json:"cost_type_id"`
}

func (p Pair) IsSet() bool { return p.CostCodeID > 0 && p.CostTypeID > 0 }

type Item struct {
	ID          RecordID
	ContractID  int
	Number      string
	Description string
	Amount      decimal.Decimal
	Notes       string
	Status      models.ContractItemStatus
	// Category is the item's own single-category field; it mirrors the legacy
	// cost_code_id / cost_type_id columns.
	Category Pair
}

type Allocation struct {
	ID         RecordID
	ItemID     RecordID
	ContractID int
	Pair       Pair
	Notes      string
}

// ItemFromModel converts a backend row into a persisted item.
func ItemFromModel(m *models.ContractItem) Item {
	return Item{
		ID:          Persisted(m.ID),
		ContractID:  m.ContractId,
		Number:      m.ItemNumber,
		Description: m.Description,
		Amount:      m.TotalAmount,
		Notes:       m.Notes,
		Status:      m.Status,
		Category: Pair{
			CostCodeID: utils.DereferencePtr(m.CostCodeId),
			CostTypeID: utils.DereferencePtr(m.CostTypeId),
		},
	}
}

// Input builds the create/update payload of the item.
func (it Item) Input() *models.NewContractItem {
	input := &models.NewContractItem{
		ItemNumber:  it.Number,
		Description: it.Description,
		TotalAmount: it.Amount,
		Notes:       it.Notes,
		Status:      it.Status,
	}
	if it.Category.IsSet() {
		input.CostCodeId = utils.NilIfEmpty(it.Category.CostCodeID)
		input.CostTypeId = utils.NilIfEmpty(it.Category.CostTypeID)
	}
	return input
}

func AllocationFromModel(m *models.ContractItemAllocation) Allocation {
	return Allocation{
		ID:         Persisted(m.ID),
		ItemID:     Persisted(m.ContractItemId),
		ContractID: m.ContractId,
		Pair:       Pair{CostCodeID: m.CostCodeId, CostTypeID: m.CostTypeId},
		Notes:      m.Notes,
	}
}

func (a Allocation) Input() *models.NewContractItemAllocation {
	return &models.NewContractItemAllocation{
		CostCodeId: a.Pair.CostCodeID,
		CostTypeId: a.Pair.CostTypeID,
		Notes:      a.Notes,
	}
}
