package workflow

import (
	"strconv"

	"github.com/mmdatafocus/contracts_backend/allocation"
	"github.com/shopspring/decimal"
)

// Row is one rendered line of the items grid.
type Row struct {
	ItemID      string
	Draft       bool
	ItemNumber  string
	Description string
	Amount      decimal.Decimal
	CostCode    string
	CostType    string
	Allocations int
}

type idLabeler struct{}

func (idLabeler) CostCodeLabel(id int) string { return strconv.Itoa(id) }
func (idLabeler) CostTypeLabel(id int) string { return strconv.Itoa(id) }

// Rows renders the grid. Split items show Multiple in both category columns;
// a nil labeler prints raw ids.
func (s *Session) Rows(labels allocation.Labeler) []Row {
	if labels == nil {
		labels = idLabeler{}
	}
	items := s.Items()
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		allocs := s.store.Get(it.ID)
		costCode, costType := allocation.Summarize(it, allocs).Labels(labels)
		rows = append(rows, Row{
			ItemID:      it.ID.String(),
			Draft:       it.ID.IsDraft(),
			ItemNumber:  it.Number,
			Description: it.Description,
			Amount:      it.Amount,
			CostCode:    costCode,
			CostType:    costType,
			Allocations: len(allocs),
		})
	}
	return rows
}
