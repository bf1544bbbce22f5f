package models

type CatalogStatus string

const (
	CatalogStatusActive   CatalogStatus = "Active"
	CatalogStatusInactive CatalogStatus = "Inactive"
)

func (s CatalogStatus) IsValid() bool {
	return s == CatalogStatusActive || s == CatalogStatusInactive
}

type ContractItemStatus string

const (
	ContractItemStatusOpen     ContractItemStatus = "Open"
	ContractItemStatusApproved ContractItemStatus = "Approved"
	ContractItemStatusClosed   ContractItemStatus = "Closed"
)

func (s ContractItemStatus) IsValid() bool {
	switch s {
	case ContractItemStatusOpen, ContractItemStatusApproved, ContractItemStatusClosed:
		return true
	}
	return false
}
