package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/shopspring/decimal"
)

type ProjectContract struct {
	ID        int             `gorm:"primary_key" json:"id"`
	ProjectId int             `gorm:"index;not null" json:"project_id"`
	Number    string          `gorm:"size:50;not null" json:"number"`
	Name      string          `gorm:"size:255" json:"name"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProjectContract struct {
	ProjectId int    `json:"project_id" validate:"required,gt=0"`
	Number    string `json:"number" validate:"required,max=50"`
	Name      string `json:"name" validate:"max=255"`
}

func CreateProjectContract(ctx context.Context, input *NewProjectContract) (*ProjectContract, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUniqueWithin[ProjectContract](ctx, "project_id", input.ProjectId, "number", input.Number, 0); err != nil {
		return nil, err
	}
	contract := ProjectContract{
		ProjectId: input.ProjectId,
		Number:    input.Number,
		Name:      input.Name,
		Amount:    decimal.Zero,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func GetProjectContract(ctx context.Context, id int) (*ProjectContract, error) {
	return utils.FetchModel[ProjectContract](ctx, id)
}

// UpdateContractAmount overwrites the contract's aggregate amount.
func UpdateContractAmount(ctx context.Context, id int, amount decimal.Decimal) (*ProjectContract, error) {
	contract, err := GetProjectContract(ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(contract).Update("amount", amount).Error; err != nil {
		return nil, err
	}
	contract.Amount = amount
	return contract, nil
}
