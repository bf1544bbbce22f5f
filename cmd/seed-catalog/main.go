// seed-catalog creates a development project: a global cost-code catalog, cost
// types, a project budget and one empty contract. Existing rows (matched by code) are
// reused, so the command can be rerun.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-catalog -project 1
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedCode struct {
	Code, Description, Division string
	ProjectOnly                 bool
}

var costCodes = []seedCode{
	{Code: "01-100", Description: "General Conditions", Division: "01"},
	{Code: "03-100", Description: "Concrete Formwork", Division: "03"},
	{Code: "03-200", Description: "Reinforcing Steel", Division: "03"},
	{Code: "03-300", Description: "Cast-in-Place Concrete", Division: "03"},
	{Code: "05-100", Description: "Structural Steel", Division: "05"},
	{Code: "99-900", Description: "Owner Allowance", Division: "99", ProjectOnly: true},
}

var costTypes = []models.NewCostType{
	{Code: "LAB", Name: "Labour"},
	{Code: "MAT", Name: "Material"},
	{Code: "EQP", Name: "Equipment"},
	{Code: "SUB", Name: "Subcontract"},
}

var budget = []struct {
	Code, Type string
	Amount     int64
}{
	{"01-100", "LAB", 25000},
	{"03-100", "LAB", 40000},
	{"03-100", "MAT", 18000},
	{"03-200", "SUB", 52000},
	{"03-300", "MAT", 90000},
	{"05-100", "SUB", 120000},
	{"99-900", "SUB", 15000},
}

func main() {
	projectID := flag.Int("project", 1, "Project id to seed the budget for")
	withContract := flag.Bool("contract", true, "Also create an empty contract for the project")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	codeIDs := map[string]int{}
	for _, c := range costCodes {
		scope := 0
		if c.ProjectOnly {
			scope = *projectID
		}
		var existing models.CostCode
		err := db.WithContext(ctx).Where("code = ? AND project_id = ?", c.Code, scope).First(&existing).Error
		if err == nil {
			codeIDs[c.Code] = existing.ID
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fail("lookup cost code "+c.Code, err)
		}
		created, err := models.CreateCostCode(ctx, &models.NewCostCode{
			Code:        c.Code,
			Description: c.Description,
			Division:    c.Division,
			ProjectId:   scope,
		})
		if err != nil {
			fail("create cost code "+c.Code, err)
		}
		codeIDs[c.Code] = created.ID
	}

	typeIDs := map[string]int{}
	for _, ct := range costTypes {
		var existing models.CostType
		err := db.WithContext(ctx).Where("code = ?", ct.Code).First(&existing).Error
		if err == nil {
			typeIDs[ct.Code] = existing.ID
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fail("lookup cost type "+ct.Code, err)
		}
		input := ct
		created, err := models.CreateCostType(ctx, &input)
		if err != nil {
			fail("create cost type "+ct.Code, err)
		}
		typeIDs[ct.Code] = created.ID
	}

	var lines int
	for _, b := range budget {
		var count int64
		err := db.WithContext(ctx).Model(&models.BudgetLine{}).
			Where("project_id = ? AND cost_code_id = ? AND cost_type_id = ?", *projectID, codeIDs[b.Code], typeIDs[b.Type]).
			Count(&count).Error
		if err != nil {
			fail("lookup budget line", err)
		}
		if count > 0 {
			continue
		}
		if _, err := models.CreateBudgetLine(ctx, &models.NewBudgetLine{
			ProjectId:  *projectID,
			CostCodeId: codeIDs[b.Code],
			CostTypeId: typeIDs[b.Type],
			Amount:     decimal.NewFromInt(b.Amount),
		}); err != nil {
			fail("create budget line "+b.Code+"/"+b.Type, err)
		}
		lines++
	}
	fmt.Printf("project %d: %d cost codes, %d cost types, %d new budget lines\n", *projectID, len(codeIDs), len(typeIDs), lines)

	if *withContract {
		pc, err := models.CreateProjectContract(ctx, &models.NewProjectContract{
			ProjectId: *projectID,
			Number:    fmt.Sprintf("DEV-%d", *projectID),
			Name:      "Development contract",
		})
		if err != nil {
			fail("create contract", err)
		}
		fmt.Printf("created contract id=%d\n", pc.ID)
	}
}

func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "failed to %s: %v\n", action, err)
	os.Exit(1)
}
