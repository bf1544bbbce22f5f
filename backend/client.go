// Package backend talks to the contract REST endpoints over JSON.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmdatafocus/contracts_backend/catalog"
	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/mmdatafocus/contracts_backend/models"
	"github.com/mmdatafocus/contracts_backend/utils"
	"github.com/mmdatafocus/contracts_backend/workflow"
	"github.com/shopspring/decimal"
)

var (
	_ workflow.Gateway = (*Client)(nil)
	_ catalog.Source   = (*Client)(nil)
)

const correlationHeader = "X-Correlation-Id"

// APIError is a non-2xx answer. Body is kept for logs only.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("contracts api error %d on %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409, which the backend answers for a duplicate allocation.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

// NewClient builds a client from the CONTRACTS_API_* settings.
func NewClient() *Client {
	return NewClientWithSettings(config.GetBackendSettings())
}

func NewClientWithSettings(settings config.BackendSettings) *Client {
	return &Client{
		baseURL:   strings.TrimRight(settings.BaseURL, "/"),
		apiKey:    settings.APIKey,
		apiKeyHdr: settings.APIKeyHeader,
		http:      &http.Client{Timeout: settings.Timeout},
	}
}

func (c *Client) do(ctx context.Context, method string, path string, in interface{}, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHdr, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if correlationID, ok := utils.GetCorrelationIdFromContext(ctx); ok && correlationID != "" {
		req.Header.Set(correlationHeader, correlationID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) ListCostCodes(ctx context.Context) ([]*models.CostCode, error) {
	var list []*models.CostCode
	if err := c.do(ctx, http.MethodGet, "/cost-codes", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) ListCostTypes(ctx context.Context) ([]*models.CostType, error) {
	var list []*models.CostType
	if err := c.do(ctx, http.MethodGet, "/cost-types", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) ListProjectCostCodes(ctx context.Context, projectID int) ([]*models.CostCode, error) {
	var list []*models.CostCode
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/cost-codes", projectID), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) ListBudgetLines(ctx context.Context, projectID int) ([]*models.BudgetLine, error) {
	var list []*models.BudgetLine
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/budget-lines", projectID), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) ListItems(ctx context.Context, contractID int) ([]*models.ContractItem, error) {
	var list []*models.ContractItem
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/contracts/%d/items", contractID), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateItem(ctx context.Context, contractID int, input *models.NewContractItem) (*models.ContractItem, error) {
	var item models.ContractItem
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/contracts/%d/items", contractID), input, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateItem(ctx context.Context, contractID int, itemID int, input *models.NewContractItem) (*models.ContractItem, error) {
	var item models.ContractItem
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/contracts/%d/items/%d", contractID, itemID), input, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteItem(ctx context.Context, contractID int, itemID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/contracts/%d/items/%d", contractID, itemID), nil, nil)
}

func (c *Client) ListAllocations(ctx context.Context, itemID int) ([]*models.ContractItemAllocation, error) {
	var list []*models.ContractItemAllocation
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/contract-items/%d/allocations", itemID), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateAllocation(ctx context.Context, itemID int, input *models.NewContractItemAllocation) (*models.ContractItemAllocation, error) {
	var allocation models.ContractItemAllocation
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/contract-items/%d/allocations", itemID), input, &allocation); err != nil {
		if IsConflict(err) {
			return nil, fmt.Errorf("%w: %v", models.ErrDuplicateAllocation, err)
		}
		return nil, err
	}
	return &allocation, nil
}

func (c *Client) DeleteAllocation(ctx context.Context, allocationID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/allocations/%d", allocationID), nil, nil)
}

type contractAmountInput struct {
	Amount decimal.Decimal `json:"amount"`
}

func (c *Client) UpdateContractAmount(ctx context.Context, contractID int, amount decimal.Decimal) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/contracts/%d/amount", contractID), contractAmountInput{Amount: amount}, nil)
}
