package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/utils"
)

var ErrDuplicateAllocation = errors.New("cost code and cost type are already allocated in this contract")

// ContractItemAllocation binds a contract item to one (cost code, cost type) pair.
// A pair is claimed by at most one item of a contract (idx_contract_pair).
type ContractItemAllocation struct {
	ID             int       `gorm:"primary_key" json:"id"`
	ContractId     int       `gorm:"index:idx_contract_pair,unique;not null" json:"contract_id"`
	ContractItemId int       `gorm:"index;not null" json:"contract_item_id"`
	CostCodeId     int       `gorm:"index:idx_contract_pair,unique;not null" json:"cost_code_id"`
	CostTypeId     int       `gorm:"index:idx_contract_pair,unique;not null" json:"cost_type_id"`
	Notes          string    `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewContractItemAllocation struct {
	CostCodeId int    `json:"cost_code_id" validate:"required,gt=0"`
	CostTypeId int    `json:"cost_type_id" validate:"required,gt=0"`
	Notes      string `json:"notes"`
}

func CreateContractItemAllocation(ctx context.Context, itemId int, input *NewContractItemAllocation) (*ContractItemAllocation, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	item, err := utils.FetchModel[ContractItem](ctx, itemId)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[CostCode](ctx, input.CostCodeId); err != nil {
		return nil, notFoundAsInput(err, "cost code not found")
	}
	if err := utils.ValidateResourceId[CostType](ctx, input.CostTypeId); err != nil {
		return nil, notFoundAsInput(err, "cost type not found")
	}
	allocation := ContractItemAllocation{
		ContractId:     item.ContractId,
		ContractItemId: item.ID,
		CostCodeId:     input.CostCodeId,
		CostTypeId:     input.CostTypeId,
		Notes:          input.Notes,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&allocation).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, ErrDuplicateAllocation
		}
		return nil, err
	}
	return &allocation, nil
}

func ListContractItemAllocations(ctx context.Context, itemId int) ([]*ContractItemAllocation, error) {
	return utils.FetchModelsWhere[ContractItemAllocation](ctx, "id", "contract_item_id = ?", itemId)
}

func ListContractAllocations(ctx context.Context, contractId int) ([]*ContractItemAllocation, error) {
	return utils.FetchModelsWhere[ContractItemAllocation](ctx, "id", "contract_id = ?", contractId)
}

func DeleteContractItemAllocation(ctx context.Context, id int) (*ContractItemAllocation, error) {
	allocation, err := utils.FetchModel[ContractItemAllocation](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(allocation).Error; err != nil {
		return nil, err
	}
	return allocation, nil
}
