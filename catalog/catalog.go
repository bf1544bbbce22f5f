// Package catalog caches a project's reference data (cost codes, cost types and
// budget lines) and narrows it to the categories a project actually budgeted.
package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/contracts_backend/models"
)

// Source is the read side of the reference-data endpoints.
type Source interface {
	ListCostCodes(ctx context.Context) ([]*models.CostCode, error)
	ListCostTypes(ctx context.Context) ([]*models.CostType, error)
	ListProjectCostCodes(ctx context.Context, projectID int) ([]*models.CostCode, error)
	ListBudgetLines(ctx context.Context, projectID int) ([]*models.BudgetLine, error)
}

const (
	CategoryCostCodes        = "cost_codes"
	CategoryCostTypes        = "cost_types"
	CategoryProjectCostCodes = "project_cost_codes"
	CategoryBudgetLines      = "budget_lines"
)

type Catalog struct {
	ProjectID        int                  `json:"project_id"`
	CostCodes        []*models.CostCode   `json:"cost_codes"`
	CostTypes        []*models.CostType   `json:"cost_types"`
	ProjectCostCodes []*models.CostCode   `json:"project_cost_codes"`
	BudgetLines      []*models.BudgetLine `json:"budget_lines"`
	// Degraded lists the categories whose fetch failed during Load.
	Degraded []string  `json:"-"`
	LoadedAt time.Time `json:"-"`
}

// AllCostCodes is the global catalog plus the project-specific codes, ordered by code.
func (c *Catalog) AllCostCodes() []*models.CostCode {
	if c == nil {
		return nil
	}
	seen := make(map[int]struct{}, len(c.CostCodes)+len(c.ProjectCostCodes))
	all := make([]*models.CostCode, 0, len(c.CostCodes)+len(c.ProjectCostCodes))
	for _, list := range [][]*models.CostCode{c.CostCodes, c.ProjectCostCodes} {
		for _, cc := range list {
			if cc == nil {
				continue
			}
			if _, ok := seen[cc.ID]; ok {
				continue
			}
			seen[cc.ID] = struct{}{}
			all = append(all, cc)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return all
}

func (c *Catalog) CostCode(id int) (*models.CostCode, bool) {
	for _, cc := range c.AllCostCodes() {
		if cc.ID == id {
			return cc, true
		}
	}
	return nil, false
}

func (c *Catalog) CostType(id int) (*models.CostType, bool) {
	if c == nil {
		return nil, false
	}
	for _, ct := range c.CostTypes {
		if ct != nil && ct.ID == id {
			return ct, true
		}
	}
	return nil, false
}

// CostCodeLabel and CostTypeLabel fall back to the numeric id when the record is unknown.
func (c *Catalog) CostCodeLabel(id int) string {
	if cc, ok := c.CostCode(id); ok {
		return cc.Code
	}
	return itoa(id)
}

func (c *Catalog) CostTypeLabel(id int) string {
	if ct, ok := c.CostType(id); ok {
		return ct.Code
	}
	return itoa(id)
}

func (c *Catalog) projectBudgetLines(projectID int) []*models.BudgetLine {
	if c == nil {
		return nil
	}
	lines := make([]*models.BudgetLine, 0, len(c.BudgetLines))
	for _, line := range c.BudgetLines {
		if line != nil && line.ProjectId == projectID {
			lines = append(lines, line)
		}
	}
	return lines
}
