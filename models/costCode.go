package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/utils"
)

// CostCode is a budget category. Project-specific codes carry their ProjectId;
// global codes have ProjectId = 0.
type CostCode struct {
	ID                int           `gorm:"primary_key" json:"id"`
	Code              string        `gorm:"index;size:50;not null" json:"code"`
	Description       string        `gorm:"size:255" json:"description"`
	Division          string        `gorm:"index;size:50" json:"division"`
	Status            CatalogStatus `gorm:"size:20;not null;default:'Active'" json:"status"`
	IsProjectSpecific bool          `gorm:"not null;default:false" json:"is_project_specific"`
	ProjectId         int           `gorm:"index" json:"project_id,omitempty"`
	CreatedAt         time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCostCode struct {
	Code        string        `json:"code" validate:"required,max=50"`
	Description string        `json:"description" validate:"max=255"`
	Division    string        `json:"division" validate:"max=50"`
	Status      CatalogStatus `json:"status"`
	ProjectId   int           `json:"project_id" validate:"gte=0"`
}

func (input *NewCostCode) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Status != "" && !input.Status.IsValid() {
		return utils.InvalidInput("invalid status")
	}
	return utils.ValidateUniqueWithin[CostCode](ctx, "project_id", input.ProjectId, "code", input.Code, 0)
}

func CreateCostCode(ctx context.Context, input *NewCostCode) (*CostCode, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = CatalogStatusActive
	}
	costCode := CostCode{
		Code:              input.Code,
		Description:       input.Description,
		Division:          input.Division,
		Status:            status,
		IsProjectSpecific: input.ProjectId > 0,
		ProjectId:         input.ProjectId,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&costCode).Error; err != nil {
		return nil, err
	}
	return &costCode, nil
}

// ListCostCodes returns the global cost-code catalog.
func ListCostCodes(ctx context.Context) ([]*CostCode, error) {
	return utils.FetchModelsWhere[CostCode](ctx, "code", "is_project_specific = ?", false)
}

func ListProjectCostCodes(ctx context.Context, projectId int) ([]*CostCode, error) {
	return utils.FetchModelsWhere[CostCode](ctx, "code", "is_project_specific = ? AND project_id = ?", true, projectId)
}
