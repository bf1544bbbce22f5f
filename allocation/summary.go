package allocation

import "github.com/mmdatafocus/contracts_backend/contract"

// MultipleLabel is shown in both the cost code and cost type columns of a split item.
const MultipleLabel = "Multiple"

type SummaryKind int

const (
	SummaryUnclassified SummaryKind = iota
	SummarySingle
	SummaryMultiple
)

// Summary is the single cost code / cost type view of an item.
type Summary struct {
	Kind SummaryKind
	Pair contract.Pair
}

// Labeler renders category ids; *catalog.Catalog satisfies it.
type Labeler interface {
	CostCodeLabel(id int) string
	CostTypeLabel(id int) string
}

// Summarize: no allocations falls back to the item's own category fields (legacy
// single-category items), one allocation shows its pair, more than one is Multiple.
func Summarize(item contract.Item, allocations []contract.Allocation) Summary {
	switch len(allocations) {
	case 0:
		if item.Category.IsSet() {
			return Summary{Kind: SummarySingle, Pair: item.Category}
		}
		return Summary{Kind: SummaryUnclassified}
	case 1:
		return Summary{Kind: SummarySingle, Pair: allocations[0].Pair}
	}
	return Summary{Kind: SummaryMultiple}
}

func (s *Store) Summary(item contract.Item) Summary {
	return Summarize(item, s.Get(item.ID))
}

func (s Summary) Labels(l Labeler) (costCode string, costType string) {
	switch s.Kind {
	case SummaryMultiple:
		return MultipleLabel, MultipleLabel
	case SummarySingle:
		return l.CostCodeLabel(s.Pair.CostCodeID), l.CostTypeLabel(s.Pair.CostTypeID)
	}
	return "", ""
}
