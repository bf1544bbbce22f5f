package models

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContractItem is one priced line of a project contract.
// CostCodeId / CostTypeId are the legacy single-category columns; the authoritative
// categories of an item are its ContractItemAllocation rows.
type ContractItem struct {
	ID          int                `gorm:"primary_key" json:"id"`
	ContractId  int                `gorm:"index;not null" json:"contract_id"`
	ItemNumber  string             `gorm:"size:20;not null" json:"item_number"`
	Description string             `gorm:"size:255" json:"description"`
	TotalAmount decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Notes       string             `gorm:"type:text" json:"notes"`
	Status      ContractItemStatus `gorm:"size:20;not null;default:'Open'" json:"status"`
	CostCodeId  *int               `gorm:"index" json:"cost_code_id"`
	CostTypeId  *int               `gorm:"index" json:"cost_type_id"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewContractItem struct {
	ItemNumber  string             `json:"item_number" validate:"required,max=20"`
	Description string             `json:"description" validate:"max=255"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Notes       string             `json:"notes"`
	Status      ContractItemStatus `json:"status"`
	CostCodeId  *int               `json:"cost_code_id"`
	CostTypeId  *int               `json:"cost_type_id"`
}

// checks that need no database
func (input *NewContractItem) validateFields() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Status != "" && !input.Status.IsValid() {
		return utils.InvalidInput("invalid status")
	}
	if (utils.DereferencePtr(input.CostCodeId) > 0) != (utils.DereferencePtr(input.CostTypeId) > 0) {
		return utils.InvalidInput("cost code and cost type must be set together")
	}
	return nil
}

// validate input for both create & update. (id = 0 for create)
func (input *NewContractItem) validate(ctx context.Context, contractId int, id int) error {
	if err := input.validateFields(); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[ProjectContract](ctx, contractId); err != nil {
		return notFoundAsInput(err, "contract not found")
	}
	if err := utils.ValidateUniqueWithin[ContractItem](ctx, "contract_id", contractId, "item_number", input.ItemNumber, id); err != nil {
		return err
	}
	if code := utils.DereferencePtr(input.CostCodeId); code > 0 {
		if err := utils.ValidateResourceId[CostCode](ctx, code); err != nil {
			return notFoundAsInput(err, "cost code not found")
		}
		if err := utils.ValidateResourceId[CostType](ctx, utils.DereferencePtr(input.CostTypeId)); err != nil {
			return notFoundAsInput(err, "cost type not found")
		}
	}
	return nil
}

func (input *NewContractItem) status() ContractItemStatus {
	if input.Status == "" {
		return ContractItemStatusOpen
	}
	return input.Status
}

func CreateContractItem(ctx context.Context, contractId int, input *NewContractItem) (*ContractItem, error) {
	if err := input.validate(ctx, contractId, 0); err != nil {
		return nil, err
	}
	item := ContractItem{
		ContractId:  contractId,
		ItemNumber:  input.ItemNumber,
		Description: input.Description,
		TotalAmount: input.TotalAmount,
		Notes:       input.Notes,
		Status:      input.status(),
		CostCodeId:  utils.NilIfEmpty(utils.DereferencePtr(input.CostCodeId)),
		CostTypeId:  utils.NilIfEmpty(utils.DereferencePtr(input.CostTypeId)),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateContractItem(ctx context.Context, contractId int, id int, input *NewContractItem) (*ContractItem, error) {
	if err := input.validate(ctx, contractId, id); err != nil {
		return nil, err
	}
	item, err := GetContractItem(ctx, contractId, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"ItemNumber":  input.ItemNumber,
		"Description": input.Description,
		"TotalAmount": input.TotalAmount,
		"Notes":       input.Notes,
		"Status":      input.status(),
		"CostCodeId":  utils.NilIfEmpty(utils.DereferencePtr(input.CostCodeId)),
		"CostTypeId":  utils.NilIfEmpty(utils.DereferencePtr(input.CostTypeId)),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetContractItem(ctx, contractId, id)
}

func GetContractItem(ctx context.Context, contractId int, id int) (*ContractItem, error) {
	item, err := utils.FetchModel[ContractItem](ctx, id)
	if err != nil {
		return nil, err
	}
	if item.ContractId != contractId {
		return nil, utils.ErrorRecordNotFound
	}
	return item, nil
}

// ListContractItems returns a contract's items ordered numerically by item number.
func ListContractItems(ctx context.Context, contractId int) ([]*ContractItem, error) {
	items, err := utils.FetchModelsWhere[ContractItem](ctx, "id", "contract_id = ?", contractId)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return utils.CompareItemNumbers(items[i].ItemNumber, items[j].ItemNumber) < 0
	})
	return items, nil
}

// DeleteContractItem removes the item together with its allocations.
func DeleteContractItem(ctx context.Context, contractId int, id int) (*ContractItem, error) {
	item, err := GetContractItem(ctx, contractId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contract_item_id = ?", id).Delete(&ContractItemAllocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(item).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}
