// Package api exposes the contract items, allocations and reference data over REST.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/mmdatafocus/contracts_backend/reports"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/shopspring/decimal"
)

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func dbReady(c *gin.Context) bool {
	if config.GetDB() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
		return false
	}
	return true
}

// respondError maps model errors to status codes. Unmapped errors come from the
// database or the driver and answer 500 without their details.
func respondError(c *gin.Context, funcName string, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrDuplicateAllocation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		config.LogError(config.GetLogger(), "api", funcName, c.Request.Method+" "+c.FullPath(), requestLogData(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func requestLogData(c *gin.Context) map[string]any {
	ctx := c.Request.Context()
	data := map[string]any{"params": c.Params}
	if id, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		data["correlation_id"] = id
	}
	if id, ok := utils.GetContractIdFromContext(ctx); ok {
		data["contract_id"] = id
	}
	if id, ok := utils.GetProjectIdFromContext(ctx); ok {
		data["project_id"] = id
	}
	return data
}

func listCostCodesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !dbReady(c) {
			return
		}
		list, err := models.ListCostCodes(c.Request.Context())
		if err != nil {
			respondError(c, "listCostCodes", err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func listCostTypesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !dbReady(c) {
			return
		}
		list, err := models.ListCostTypes(c.Request.Context())
		if err != nil {
			respondError(c, "listCostTypes", err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func listProjectCostCodesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, ok := pathId(c, "id")
		if !ok || !dbReady(c) {
			return
		}
		c.Request = c.Request.WithContext(utils.SetProjectIdInContext(c.Request.Context(), projectId))
		ctx := c.Request.Context()
		list, err := models.ListProjectCostCodes(ctx, projectId)
		if err != nil {
			respondError(c, "listProjectCostCodes", err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func listBudgetLinesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectId, ok := pathId(c, "id")
		if !ok || !dbReady(c) {
			return
		}
		c.Request = c.Request.WithContext(utils.SetProjectIdInContext(c.Request.Context(), projectId))
		ctx := c.Request.Context()
		list, err := models.ListBudgetLines(ctx, projectId)
		if err != nil {
			respondError(c, "listBudgetLines", err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func listItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contractId, ok := pathId(c, "id")
		if !ok || !dbReady(c) {
			return
		}
		c.Request = c.Request.WithContext(utils.SetContractIdInContext(c.Request.Context(), contractId))
		ctx := c.Request.Context()
		list, err := models.ListContractItems(ctx, contractId)
		if err != nil {
			respondError(c, "listItems", err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func createItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contractId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewContractItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !dbReady(c) {
			return
		}
		c.Request = c.Request.WithContext(utils.SetContractIdInContext(c.Request.Context(), contractId))
		ctx := c.Request.Context()
		item, err := models.CreateContractItem(ctx, contractId, &input)
		if err != nil {
			respondError(c, "createItem", err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func updateItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contractId, ok := pathId(c, "id")
		if !ok {
			return
		}
		itemId, ok := pathId(c, "itemId")
		if !ok {
			return
		}
		var input models.NewContractItem
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !dbReady(c) {
			return
		}
		c.Request = c.Request.WithContext(utils.SetContractIdInContext(c.Request.Context(), contractId))
		ctx := c.Request.Context()
		item, err := models.UpdateContractItem(ctx, contractId, itemId, &input)
		if err != nil {
			respondError(c, "updateItem", err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func deleteItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contractId, ok := pathId(c, "id")
		if !ok {
			return
		}
		itemId, ok := pathId(c, "itemId")
		if !ok || !dbReady(c) {
			return
		}
		c.Request = c.Request.WithContext(utils.SetContractIdInContext(c.Request.Context(), contractId))
		ctx := c.Request.Context()
		if _, err := models.DeleteContractItem(ctx, contractId, itemId); err != nil {
			respondError(c, "deleteItem", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listAllocationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemId, ok := pathId(c, "itemId")
		if !ok || !dbReady(c) {
			return
		}
		list, err := models.ListContractItemAllocations(c.Request.Context(), itemId)
		if err != nil {
			respondError(c, "listAllocations", err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func createAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemId, ok := pathId(c, "itemId")
		if !ok {
			return
		}
		var input models.NewContractItemAllocation
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if !dbReady(c) {
			return
		}
		allocation, err := models.CreateContractItemAllocation(c.Request.Context(), itemId, &input)
		if err != nil {
			respondError(c, "createAllocation", err)
			return
		}
		c.JSON(http.StatusCreated, allocation)
	}
}

func deleteAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		allocationId, ok := pathId(c, "id")
		if !ok || !dbReady(c) {
			return
		}
		if _, err := models.DeleteContractItemAllocation(c.Request.Context(), allocationId); err != nil {
			respondError(c, "deleteAllocation", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type contractAmountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func updateContractAmountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contractId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req contractAmountRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
			return
		}
		if !dbReady(c) {
			return
		}
		pc, err := models.UpdateContractAmount(c.Request.Context(), contractId, *req.Amount)
		if err != nil {
			respondError(c, "updateContractAmount", err)
			return
		}
		c.JSON(http.StatusOK, pc)
	}
}

func exportItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contractId, ok := pathId(c, "id")
		if !ok || !dbReady(c) {
			return
		}
		data, err := reports.LoadContractItemsData(c.Request.Context(), contractId)
		if err != nil {
			respondError(c, "exportItems", err)
			return
		}
		f, err := reports.BuildContractItemsWorkbook(data)
		if err != nil {
			respondError(c, "exportItems", err)
			return
		}
		defer f.Close()

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=contract-"+strconv.Itoa(contractId)+"-items.xlsx")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "api", "exportItems", "Write", contractId, err)
		}
	}
}
