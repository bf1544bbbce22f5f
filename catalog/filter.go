package catalog

import (
	"strconv"

	"github.com/mmdatafocus/contracts_backend/contract"
	"github.com/mmdatafocus/contracts_backend/models"
)

// CandidateCostCodes narrows the cost-code catalog to codes budgeted for the project.
// With no budget lines, or when nothing budgeted is active in the catalog, the full
// catalog is returned so the choice list is never empty.
func CandidateCostCodes(cat *Catalog, projectID int) []*models.CostCode {
	all := cat.AllCostCodes()
	lines := cat.projectBudgetLines(projectID)
	if len(lines) == 0 {
		return all
	}
	budgeted := make(map[int]struct{}, len(lines))
	for _, line := range lines {
		budgeted[line.CostCodeId] = struct{}{}
	}
	filtered := make([]*models.CostCode, 0, len(budgeted))
	for _, cc := range all {
		if _, ok := budgeted[cc.ID]; ok && isActive(cc.Status) {
			filtered = append(filtered, cc)
		}
	}
	if len(filtered) == 0 {
		return all
	}
	return filtered
}

// CandidateCostTypes narrows cost types to the budget lines of the selected cost code,
// widening to every budgeted type of the project and then to the full catalog.
func CandidateCostTypes(cat *Catalog, projectID int, selectedCostCodeID int) []*models.CostType {
	if cat == nil {
		return nil
	}
	all := cat.CostTypes
	lines := cat.projectBudgetLines(projectID)
	if len(lines) == 0 {
		return all
	}
	if selectedCostCodeID > 0 {
		byCode := make(map[int]struct{})
		for _, line := range lines {
			if line.CostCodeId == selectedCostCodeID {
				byCode[line.CostTypeId] = struct{}{}
			}
		}
		if filtered := filterCostTypes(all, byCode); len(filtered) > 0 {
			return filtered
		}
	}
	byProject := make(map[int]struct{}, len(lines))
	for _, line := range lines {
		byProject[line.CostTypeId] = struct{}{}
	}
	if filtered := filterCostTypes(all, byProject); len(filtered) > 0 {
		return filtered
	}
	return all
}

// BudgetedPairs lists the project's budget categories in budget-line order, without duplicates.
func BudgetedPairs(cat *Catalog, projectID int) []contract.Pair {
	lines := cat.projectBudgetLines(projectID)
	pairs := make([]contract.Pair, 0, len(lines))
	seen := make(map[contract.Pair]struct{}, len(lines))
	for _, line := range lines {
		p := contract.Pair{CostCodeID: line.CostCodeId, CostTypeID: line.CostTypeId}
		if !p.IsSet() {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}
	return pairs
}

func filterCostTypes(all []*models.CostType, ids map[int]struct{}) []*models.CostType {
	filtered := make([]*models.CostType, 0, len(ids))
	for _, ct := range all {
		if ct == nil {
			continue
		}
		if _, ok := ids[ct.ID]; ok && isActive(ct.Status) {
			filtered = append(filtered, ct)
		}
	}
	return filtered
}

// blank status is treated as active
func isActive(status models.CatalogStatus) bool {
	return status != models.CatalogStatusInactive
}

func itoa(id int) string {
	return strconv.Itoa(id)
}
