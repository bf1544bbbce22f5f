package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/contracts_backend/models"
)

func TestWorkspaceOpenClosesPreviousContract(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.costCodes = []*models.CostCode{{ID: 1, Code: "01-100", Status: models.CatalogStatusActive}}
	gw.budgetLines = []*models.BudgetLine{{ProjectId: 7, CostCodeId: 1, CostTypeId: 1}}
	gw.seedItem(1, "0001", "10", pair(1, 1))
	gw.seedItem(2, "0001", "20", pair(1, 1))

	w := NewWorkspace(gw, gw, quietLogger())
	first, err := w.Open(ctx, 1, 7)
	if err != nil {
		t.Fatalf("Open 1: %v", err)
	}
	if cat := w.CurrentCatalog(); cat == nil || cat.ProjectID != 7 || len(cat.BudgetLines) != 1 {
		t.Fatalf("unexpected catalog %+v", cat)
	}

	second, err := w.Open(ctx, 2, 7)
	if err != nil {
		t.Fatalf("Open 2: %v", err)
	}
	if !first.IsClosed() || second.IsClosed() {
		t.Fatalf("expected only the first session to be closed")
	}
	if w.Current() != second {
		t.Fatalf("current session should be contract 2")
	}
	if _, err := first.SaveAll(ctx); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession from the replaced session, got %v", err)
	}
	if len(second.Items()) != 1 || second.Items()[0].ContractID != 2 {
		t.Fatalf("unexpected items %+v", second.Items())
	}

	w.Close()
	if w.Current() != nil || w.CurrentCatalog() != nil {
		t.Fatalf("expected empty workspace after Close")
	}
}
