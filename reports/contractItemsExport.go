// Package reports renders contract data as spreadsheets.
package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/mmdatafocus/contracts_backend/allocation"
	"github.com/mmdatafocus/contracts_backend/catalog"
	"github.com/mmdatafocus/contracts_backend/contract"
	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const itemsSheet = "Items"

var itemHeaders = []string{"Item", "Description", "Cost Code", "Cost Type", "Allocations", "Status", "Amount", "Notes"}

// ContractItemsData is everything the items sheet needs.
type ContractItemsData struct {
	Contract    *models.ProjectContract
	Items       []contract.Item
	Allocations map[contract.RecordID][]contract.Allocation
	Labels      allocation.Labeler
}

// LoadContractItemsData reads a contract, its items, their allocations and the
// project's cost codes and types.
func LoadContractItemsData(ctx context.Context, contractId int) (*ContractItemsData, error) {
	pc, err := models.GetProjectContract(ctx, contractId)
	if err != nil {
		return nil, err
	}
	rows, err := models.ListContractItems(ctx, contractId)
	if err != nil {
		return nil, err
	}
	allocs, err := models.ListContractAllocations(ctx, contractId)
	if err != nil {
		return nil, err
	}
	costCodes, err := models.ListCostCodes(ctx)
	if err != nil {
		return nil, err
	}
	projectCostCodes, err := models.ListProjectCostCodes(ctx, pc.ProjectId)
	if err != nil {
		return nil, err
	}
	costTypes, err := models.ListCostTypes(ctx)
	if err != nil {
		return nil, err
	}

	data := &ContractItemsData{
		Contract:    pc,
		Allocations: make(map[contract.RecordID][]contract.Allocation),
		Labels: &catalog.Catalog{
			ProjectID:        pc.ProjectId,
			CostCodes:        costCodes,
			ProjectCostCodes: projectCostCodes,
			CostTypes:        costTypes,
		},
	}
	for _, row := range rows {
		data.Items = append(data.Items, contract.ItemFromModel(row))
	}
	for _, m := range allocs {
		a := contract.AllocationFromModel(m)
		data.Allocations[a.ItemID] = append(data.Allocations[a.ItemID], a)
	}
	return data, nil
}

// BuildContractItemsWorkbook writes one row per item plus a total row. Items split
// across several categories show Multiple in both category columns.
func BuildContractItemsWorkbook(data *ContractItemsData) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", itemsSheet); err != nil {
		return nil, err
	}

	row := 1
	if data.Contract != nil {
		f.SetCellValue(itemsSheet, "A1", fmt.Sprintf("%s %s", data.Contract.Number, data.Contract.Name))
		row = 3
	}
	for i, h := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(itemsSheet, cell, h)
	}

	labels := data.Labels
	if labels == nil {
		labels = &catalog.Catalog{}
	}
	total := decimal.Zero
	for _, it := range data.Items {
		row++
		allocs := data.Allocations[it.ID]
		costCode, costType := allocation.Summarize(it, allocs).Labels(labels)
		amount, _ := it.Amount.Float64()
		total = total.Add(it.Amount)
		values := []interface{}{it.Number, it.Description, costCode, costType, len(allocs), string(it.Status), amount, it.Notes}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(itemsSheet, cell, v)
		}
	}

	row++
	f.SetCellValue(itemsSheet, fmt.Sprintf("F%d", row), "Total")
	totalAmount, _ := total.Float64()
	f.SetCellValue(itemsSheet, fmt.Sprintf("G%d", row), totalAmount)
	return f, nil
}

// ExportContractItems streams the items sheet of a contract as xlsx.
func ExportContractItems(ctx context.Context, contractId int, w io.Writer) error {
	data, err := LoadContractItemsData(ctx, contractId)
	if err != nil {
		return err
	}
	f, err := BuildContractItemsWorkbook(data)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
