package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/mmdatafocus/contracts_backend/catalog"
	"github.com/mmdatafocus/contracts_backend/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Workspace holds the one contract currently open for editing together with the
// catalog of its project. Opening another contract closes the previous session,
// so its late responses are discarded.
type Workspace struct {
	Gateway Gateway
	Catalog *catalog.Cache
	Logger  *logrus.Logger
	Locker  SweepLocker

	mu      sync.Mutex
	current *Session
}

func NewWorkspace(gateway Gateway, source catalog.Source, logger *logrus.Logger) *Workspace {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Workspace{
		Gateway: gateway,
		Catalog: catalog.NewCache(source, logger),
		Logger:  logger,
	}
}

// Open loads the items, allocations and project catalog of a contract and makes it
// the current session. The catalog is reloaded only when the project changes.
func (w *Workspace) Open(ctx context.Context, contractID int, projectID int) (*Session, error) {
	session := NewSession(contractID, projectID, w.Gateway, w.Logger)
	session.Locker = w.Locker

	w.mu.Lock()
	previous := w.current
	w.current = session
	w.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	reloadCatalog := true
	if cat := w.Catalog.Current(); cat != nil && cat.ProjectID == projectID {
		reloadCatalog = false
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Load(gctx)
	})
	if reloadCatalog {
		g.Go(func() error {
			if _, err := w.Catalog.Load(gctx, projectID); err != nil {
				if errors.Is(err, catalog.ErrStaleCatalog) {
					return ErrStaleSession
				}
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrStaleSession) {
			config.LogError(w.Logger, "workspace.go", "Open", "Load contract", map[string]interface{}{
				"contract_id": contractID,
				"project_id":  projectID,
			}, err)
		}
		return nil, err
	}

	if w.Current() != session {
		return nil, ErrStaleSession
	}
	return session, nil
}

func (w *Workspace) Current() *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// CurrentCatalog returns the catalog of the open contract's project.
func (w *Workspace) CurrentCatalog() *catalog.Catalog {
	return w.Catalog.Current()
}

// Close closes the current session and invalidates the catalog.
func (w *Workspace) Close() {
	w.mu.Lock()
	previous := w.current
	w.current = nil
	w.mu.Unlock()
	if previous != nil {
		previous.Close()
	}
	w.Catalog.Invalidate()
}
