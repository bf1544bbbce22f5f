package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrStaleCatalog is returned by a Load that was overtaken by a newer Load.
var ErrStaleCatalog = errors.New("catalog load superseded by a newer project")

// Cache owns the catalog of the active project. It is replaced wholesale on every Load.
type Cache struct {
	source      Source
	logger      *logrus.Logger
	snapshotTTL time.Duration

	mu         sync.RWMutex
	current    *Catalog
	generation uint64
}

func NewCache(source Source, logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Cache{
		source:      source,
		logger:      logger,
		snapshotTTL: config.CatalogSnapshotTTL(),
	}
}

func (c *Cache) Current() *Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Invalidate drops the active catalog; in-flight loads become stale.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.current = nil
	c.mu.Unlock()
}

// Load fetches the four categories concurrently. A failed category falls back to the
// project's last redis snapshot, or to an empty list, and never fails the whole load.
func (c *Cache) Load(ctx context.Context, projectID int) (*Catalog, error) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	cat := &Catalog{ProjectID: projectID}
	var (
		failMu sync.Mutex
		failed = map[string]error{}
	)
	fail := func(category string, err error) {
		failMu.Lock()
		failed[category] = err
		failMu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		list, err := c.source.ListCostCodes(ctx)
		if err != nil {
			fail(CategoryCostCodes, err)
			return nil
		}
		cat.CostCodes = list
		return nil
	})
	g.Go(func() error {
		list, err := c.source.ListCostTypes(ctx)
		if err != nil {
			fail(CategoryCostTypes, err)
			return nil
		}
		cat.CostTypes = list
		return nil
	})
	g.Go(func() error {
		list, err := c.source.ListProjectCostCodes(ctx, projectID)
		if err != nil {
			fail(CategoryProjectCostCodes, err)
			return nil
		}
		cat.ProjectCostCodes = list
		return nil
	})
	g.Go(func() error {
		list, err := c.source.ListBudgetLines(ctx, projectID)
		if err != nil {
			fail(CategoryBudgetLines, err)
			return nil
		}
		cat.BudgetLines = list
		return nil
	})
	_ = g.Wait()

	if len(failed) > 0 {
		c.degrade(ctx, cat, failed)
	}
	cat.LoadedAt = time.Now()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.WithFields(logrus.Fields{
			"module":     "catalog",
			"project_id": projectID,
		}).Debug("discarding stale catalog load")
		return nil, ErrStaleCatalog
	}
	c.current = cat
	c.mu.Unlock()

	if len(failed) == 0 {
		if err := config.SetRedisObject(ctx, snapshotKey(projectID), cat, c.snapshotTTL); err != nil {
			config.LogError(c.logger, "catalog", "Load", "SetRedisObject", projectID, err)
		}
	}
	return cat, nil
}

func (c *Cache) degrade(ctx context.Context, cat *Catalog, failed map[string]error) {
	var snapshot Catalog
	found, err := config.GetRedisObject(ctx, snapshotKey(cat.ProjectID), &snapshot)
	if err != nil {
		config.LogError(c.logger, "catalog", "Load", "GetRedisObject", cat.ProjectID, err)
		found = false
	}
	for _, category := range []string{CategoryCostCodes, CategoryCostTypes, CategoryProjectCostCodes, CategoryBudgetLines} {
		fetchErr, ok := failed[category]
		if !ok {
			continue
		}
		config.LogError(c.logger, "catalog", "Load", "fetch "+category, cat.ProjectID, fetchErr)
		cat.Degraded = append(cat.Degraded, category)
		switch category {
		case CategoryCostCodes:
			cat.CostCodes = pick(found, snapshot.CostCodes)
		case CategoryCostTypes:
			cat.CostTypes = pick(found, snapshot.CostTypes)
		case CategoryProjectCostCodes:
			cat.ProjectCostCodes = pick(found, snapshot.ProjectCostCodes)
		case CategoryBudgetLines:
			cat.BudgetLines = pick(found, snapshot.BudgetLines)
		}
	}
}

func pick[T any](found bool, snapshot []T) []T {
	if found && snapshot != nil {
		return snapshot
	}
	return []T{}
}

func snapshotKey(projectID int) string {
	return fmt.Sprintf("catalog:project:%d", projectID)
}
