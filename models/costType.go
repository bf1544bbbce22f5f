package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/utils"
)

type CostType struct {
	ID        int           `gorm:"primary_key" json:"id"`
	Code      string        `gorm:"uniqueIndex;size:20;not null" json:"code"`
	Name      string        `gorm:"size:100;not null" json:"name"`
	Status    CatalogStatus `gorm:"size:20;not null;default:'Active'" json:"status"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCostType struct {
	Code   string        `json:"code" validate:"required,max=20"`
	Name   string        `json:"name" validate:"required,max=100"`
	Status CatalogStatus `json:"status"`
}

func CreateCostType(ctx context.Context, input *NewCostType) (*CostType, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Status != "" && !input.Status.IsValid() {
		return nil, utils.InvalidInput("invalid status")
	}
	if err := utils.ValidateUnique[CostType](ctx, "code", input.Code, 0); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = CatalogStatusActive
	}
	costType := CostType{Code: input.Code, Name: input.Name, Status: status}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&costType).Error; err != nil {
		return nil, err
	}
	return &costType, nil
}

func ListCostTypes(ctx context.Context) ([]*CostType, error) {
	return utils.FetchModelsWhere[CostType](ctx, "code", "")
}
