package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/sirupsen/logrus"
)

// legacy-allocation-backfill promotes the single-category columns of contract items
// (cost_code_id / cost_type_id) into allocation records.
//
// Only items without any allocation are touched. A pair already claimed elsewhere in
// the contract is reported as a conflict and left for manual cleanup.
//
// Once every contract is backfilled, ALLOCATION_LEGACY_SCAN=false can retire the
// legacy tier of the duplicate check.
type legacyItem struct {
	ID         int
	ContractId int
	ItemNumber string
	CostCodeId int
	CostTypeId int
}

func main() {
	contractID := flag.Int("contract", 0, "Optional: limit to one contract id")
	dryRun := flag.Bool("dry-run", false, "If true, do not write; only print actions")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()
	ctx := context.Background()

	if *dryRun {
		fmt.Println("[dry-run] no changes will be written")
	}

	q := db.WithContext(ctx).Table("contract_items AS ci").
		Select("ci.id, ci.contract_id, ci.item_number, ci.cost_code_id, ci.cost_type_id").
		Where("COALESCE(ci.cost_code_id, 0) > 0 AND COALESCE(ci.cost_type_id, 0) > 0").
		Where("NOT EXISTS (SELECT 1 FROM contract_item_allocations a WHERE a.contract_item_id = ci.id)")
	if *contractID > 0 {
		q = q.Where("ci.contract_id = ?", *contractID)
	}
	var rows []legacyItem
	if err := q.Order("ci.contract_id, ci.id").Scan(&rows).Error; err != nil {
		logger.WithError(err).Error("failed to list legacy items")
		os.Exit(1)
	}

	var promoted, conflicts, failed int
	for _, row := range rows {
		entry := logger.WithFields(logrus.Fields{
			"contract_id":  row.ContractId,
			"item_id":      row.ID,
			"item_number":  row.ItemNumber,
			"cost_code_id": row.CostCodeId,
			"cost_type_id": row.CostTypeId,
		})
		if *dryRun {
			entry.Info("would promote legacy category")
			promoted++
			continue
		}
		_, err := models.CreateContractItemAllocation(ctx, row.ID, &models.NewContractItemAllocation{
			CostCodeId: row.CostCodeId,
			CostTypeId: row.CostTypeId,
			Notes:      "promoted from item category",
		})
		switch {
		case err == nil:
			promoted++
			entry.Info("promoted legacy category")
		case errors.Is(err, models.ErrDuplicateAllocation):
			conflicts++
			entry.Warn("pair already allocated in contract; left unchanged")
		default:
			failed++
			entry.WithError(err).Error("failed to promote legacy category")
		}
	}

	fmt.Printf("legacy items=%d promoted=%d conflicts=%d failed=%d\n", len(rows), promoted, conflicts, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
