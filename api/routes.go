package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/utils"
)

const correlationHeader = "X-Correlation-Id"

// CorrelationMiddleware propagates the caller's correlation id or assigns a new one.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(correlationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header(correlationHeader, cid)
		c.Next()
	}
}

// APIKeyMiddleware rejects requests without the configured key. An empty key disables the check.
func APIKeyMiddleware(settings config.BackendSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		if settings.APIKey == "" {
			c.Next()
			return
		}
		got := c.GetHeader(settings.APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(settings.APIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Register mounts every contract endpoint on r.
func Register(r gin.IRouter) {
	r.GET("/cost-codes", listCostCodesHandler())
	r.GET("/cost-types", listCostTypesHandler())
	r.GET("/projects/:id/cost-codes", listProjectCostCodesHandler())
	r.GET("/projects/:id/budget-lines", listBudgetLinesHandler())

	r.GET("/contracts/:id/items", listItemsHandler())
	r.POST("/contracts/:id/items", createItemHandler())
	r.GET("/contracts/:id/items/export", exportItemsHandler())
	r.PUT("/contracts/:id/items/:itemId", updateItemHandler())
	r.DELETE("/contracts/:id/items/:itemId", deleteItemHandler())
	r.PUT("/contracts/:id/amount", updateContractAmountHandler())

	r.GET("/contract-items/:itemId/allocations", listAllocationsHandler())
	r.POST("/contract-items/:itemId/allocations", createAllocationHandler())
	r.DELETE("/allocations/:id", deleteAllocationHandler())
}
