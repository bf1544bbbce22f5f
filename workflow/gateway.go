package workflow

import (
	"context"

	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/shopspring/decimal"
)

// Gateway is the item / allocation / contract CRUD the engine consumes.
// Every call is a network round trip; errors are treated as transient.
type Gateway interface {
	ListItems(ctx context.Context, contractID int) ([]*models.ContractItem, error)
	CreateItem(ctx context.Context, contractID int, input *models.NewContractItem) (*models.ContractItem, error)
	UpdateItem(ctx context.Context, contractID int, itemID int, input *models.NewContractItem) (*models.ContractItem, error)
	DeleteItem(ctx context.Context, contractID int, itemID int) error

	ListAllocations(ctx context.Context, itemID int) ([]*models.ContractItemAllocation, error)
	CreateAllocation(ctx context.Context, itemID int, input *models.NewContractItemAllocation) (*models.ContractItemAllocation, error)
	DeleteAllocation(ctx context.Context, allocationID int) error

	UpdateContractAmount(ctx context.Context, contractID int, amount decimal.Decimal) error
}
