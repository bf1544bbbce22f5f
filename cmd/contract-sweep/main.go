// contract-sweep opens a contract through the contracts API, applies a batch of
// item edits from a JSON file and runs the save sweep.
//
// Usage:
//
//	CONTRACTS_API_BASE_URL=... CONTRACTS_API_KEY=... go run ./cmd/contract-sweep -contract 12 -project 3 -edits edits.json
//
// Exit status is 1 when any item failed to save.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/contracts_backend/backend"
	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/contract"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/mmdatafocus/contracts_backend/workflow"
)

type allocationEdit struct {
	CostCodeId int    `json:"cost_code_id"`
	CostTypeId int    `json:"cost_type_id"`
	Notes      string `json:"notes"`
}

type itemEdit struct {
	ItemNumber  string           `json:"item_number"`
	Description *string          `json:"description"`
	Notes       *string          `json:"notes"`
	Amount      *string          `json:"amount"`
	CostCodeId  *int             `json:"cost_code_id"`
	CostTypeId  *int             `json:"cost_type_id"`
	Allocations []allocationEdit `json:"allocations"`
	Delete      bool             `json:"delete"`
}

// editBatch: items with an unknown item_number (or none) are added as drafts.
type editBatch struct {
	Items      []itemEdit `json:"items"`
	FromBudget bool       `json:"from_budget"`
}

func main() {
	contractID := flag.Int("contract", 0, "Required: contract id")
	projectID := flag.Int("project", 0, "Required: project id of the contract")
	editsPath := flag.String("edits", "", "JSON file with item edits")
	adjust := flag.String("adjust", "", "Optional: markup percentage applied after the save")
	useRedisLock := flag.Bool("redis-lock", false, "Hold a redis lock on the contract while saving")
	flag.Parse()

	if *contractID <= 0 || *projectID <= 0 {
		fmt.Fprintln(os.Stderr, "--contract and --project are required")
		os.Exit(2)
	}

	var batch editBatch
	if *editsPath != "" {
		raw, err := os.ReadFile(*editsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read edits: %v\n", err)
			os.Exit(2)
		}
		if err := json.Unmarshal(raw, &batch); err != nil {
			fmt.Fprintf(os.Stderr, "invalid edits file: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := config.GetLogger()
	client := backend.NewClient()
	ws := workflow.NewWorkspace(client, client, logger)
	if *useRedisLock {
		config.ConnectRedisWithRetry(ctx)
		ws.Locker = workflow.NewRedisSweepLocker()
	}

	session, err := ws.Open(ctx, *contractID, *projectID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open contract %d: %v\n", *contractID, err)
		os.Exit(1)
	}
	defer ws.Close()

	if batch.FromBudget {
		added, err := session.GenerateFromBudget(ws.CurrentCatalog())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate items from budget: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("generated %d items from budget\n", len(added))
	}
	for _, edit := range batch.Items {
		if err := applyEdit(ctx, session, edit); err != nil {
			fmt.Fprintf(os.Stderr, "edit %q rejected: %v\n", edit.ItemNumber, err)
			os.Exit(1)
		}
	}

	report, err := session.SaveAll(ctx)
	printReport(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "save: %v\n", err)
		os.Exit(1)
	}

	if *adjust != "" {
		pct, err := utils.ParseAmount(*adjust)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --adjust: %v\n", err)
			os.Exit(2)
		}
		adj, err := session.ApplyAdjustment(ctx, pct)
		if adj != nil {
			fmt.Printf("adjusted %d items by %s%%, contract amount %s\n", len(adj.Results), pct, adj.Total)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "adjust: %v\n", err)
			os.Exit(1)
		}
	}
}

func findItem(session *workflow.Session, number string) (contract.Item, bool) {
	if number == "" {
		return contract.Item{}, false
	}
	for _, it := range session.Items() {
		if it.Number == number {
			return it, true
		}
	}
	return contract.Item{}, false
}

func applyEdit(ctx context.Context, session *workflow.Session, edit itemEdit) error {
	category := contract.Pair{
		CostCodeID: utils.DereferencePtr(edit.CostCodeId),
		CostTypeID: utils.DereferencePtr(edit.CostTypeId),
	}
	item, exists := findItem(session, edit.ItemNumber)

	if edit.Delete {
		if !exists {
			return errors.New("item not found")
		}
		return session.DeleteItem(ctx, item.ID)
	}

	if !exists {
		input := workflow.DraftItemInput{
			Number:      edit.ItemNumber,
			Description: utils.DereferencePtr(edit.Description),
			Notes:       utils.DereferencePtr(edit.Notes),
			Category:    category,
		}
		if edit.Amount != nil {
			amount, err := utils.ParseAmount(*edit.Amount)
			if err != nil {
				return err
			}
			input.Amount = amount
		}
		created, err := session.AddDraftItem(input)
		if err != nil {
			return err
		}
		item = created
	} else {
		if edit.Description != nil || edit.Notes != nil {
			description := utils.DereferencePtr(edit.Description, item.Description)
			notes := utils.DereferencePtr(edit.Notes, item.Notes)
			if err := session.SetItemDetails(item.ID, description, notes); err != nil {
				return err
			}
		}
		if edit.Amount != nil {
			amount, err := utils.ParseAmount(*edit.Amount)
			if err != nil {
				return err
			}
			if err := session.SetItemAmount(item.ID, amount); err != nil {
				return err
			}
		}
		if edit.CostCodeId != nil || edit.CostTypeId != nil {
			if err := session.SetItemCategory(item.ID, category); err != nil {
				return err
			}
		}
	}

	for _, a := range edit.Allocations {
		pair := contract.Pair{CostCodeID: a.CostCodeId, CostTypeID: a.CostTypeId}
		if _, err := session.AddAllocation(ctx, item.ID, pair, a.Notes); err != nil {
			return err
		}
	}
	return nil
}

func printReport(report *workflow.SweepReport) {
	if report == nil {
		return
	}
	for _, res := range report.Results {
		line := fmt.Sprintf("%-8s %-8s %s", res.ItemNumber, res.Outcome, res.ItemID)
		if !res.TempID.IsZero() {
			line += " (was " + res.TempID.String() + ")"
		}
		if res.Err != nil {
			line += ": " + res.Err.Error()
		}
		fmt.Println(line)
	}
	if report.Aborted == nil && !report.Stale {
		fmt.Printf("contract %d amount %s (correlation %s)\n", report.ContractID, report.Total, report.CorrelationID)
	}
}
