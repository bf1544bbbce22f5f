package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/shopspring/decimal"
)

// BudgetLine is an approved (cost code, cost type) category of a project.
type BudgetLine struct {
	ID         int             `gorm:"primary_key" json:"id"`
	ProjectId  int             `gorm:"index:idx_budget_line_pair,unique;not null" json:"project_id"`
	CostCodeId int             `gorm:"index:idx_budget_line_pair,unique;not null" json:"cost_code_id"`
	CostTypeId int             `gorm:"index:idx_budget_line_pair,unique;not null" json:"cost_type_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewBudgetLine struct {
	ProjectId  int             `json:"project_id" validate:"required,gt=0"`
	CostCodeId int             `json:"cost_code_id" validate:"required,gt=0"`
	CostTypeId int             `json:"cost_type_id" validate:"required,gt=0"`
	Amount     decimal.Decimal `json:"amount"`
}

func CreateBudgetLine(ctx context.Context, input *NewBudgetLine) (*BudgetLine, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[CostCode](ctx, input.CostCodeId); err != nil {
		return nil, notFoundAsInput(err, "cost code not found")
	}
	if err := utils.ValidateResourceId[CostType](ctx, input.CostTypeId); err != nil {
		return nil, notFoundAsInput(err, "cost type not found")
	}
	line := BudgetLine{
		ProjectId:  input.ProjectId,
		CostCodeId: input.CostCodeId,
		CostTypeId: input.CostTypeId,
		Amount:     input.Amount,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&line).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, utils.InvalidInput("budget line already exists")
		}
		return nil, err
	}
	return &line, nil
}

func ListBudgetLines(ctx context.Context, projectId int) ([]*BudgetLine, error) {
	return utils.FetchModelsWhere[BudgetLine](ctx, "id", "project_id = ?", projectId)
}
