package models

import (
	"log"

	"github.com/mmdatafocus/contracts_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&CostCode{}, &CostType{}, &BudgetLine{},
		&ProjectContract{}, &ContractItem{}, &ContractItemAllocation{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
