package service

import (
	"context"
	"fmt"
	"time"

	"github.com/evanmarshall/matchbook/internal/domain"
	"github.com/evanmarshall/matchbook/internal/engine"
	"github.com/evanmarshall/matchbook/internal/refdata"
	"github.com/evanmarshall/matchbook/internal/store"
)

// BookView is the order-book query result: the cached snapshot plus the
// top-N resting orders per side in priority order.
type BookView struct {
	Snapshot domain.OrderBookSnapshot
	Bids     []engine.RestingLevel
	Asks     []engine.RestingLevel
}

// BookService answers order-book queries.
type BookService struct {
	books        *engine.BookIndex
	orders       *store.OrderStore
	snapshots    *store.SnapshotStore
	dir          refdata.Directory
	defaultDepth int
}

// NewBookService creates a BookService.
func NewBookService(
	books *engine.BookIndex,
	orders *store.OrderStore,
	snapshots *store.SnapshotStore,
	dir refdata.Directory,
	defaultDepth int,
) *BookService {
	return &BookService{
		books:        books,
		orders:       orders,
		snapshots:    snapshots,
		dir:          dir,
		defaultDepth: defaultDepth,
	}
}

// GetBook returns the snapshot and top-N depth for a security. depth <= 0
// selects the configured default.
func (s *BookService) GetBook(ctx context.Context, companyID, securityClassID string, depth int) (*BookView, error) {
	if depth <= 0 {
		depth = s.defaultDepth
	}
	if depth > 50 {
		return nil, &domain.ValidationError{Message: "depth must be between 1 and 50"}
	}

	ok, err := s.dir.CompanyExists(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("reference-data lookup: %w", err)
	}
	if !ok {
		return nil, domain.ErrCompanyNotFound
	}
	ok, err = s.dir.SecurityClassExists(ctx, companyID, securityClassID)
	if err != nil {
		return nil, fmt.Errorf("reference-data lookup: %w", err)
	}
	if !ok {
		return nil, domain.ErrSecurityClassNotFound
	}

	key := domain.SecurityKey{CompanyID: companyID, SecurityClassID: securityClassID}

	snap, found := s.snapshots.Get(key)
	if !found {
		// No execution yet; serve an empty row rather than a 404.
		snap = domain.OrderBookSnapshot{
			CompanyID:       companyID,
			SecurityClassID: securityClassID,
			UpdatedAt:       time.Now(),
		}
	}

	bids, asks := s.books.TopOfBook(key, depth, func(orderID string) (int64, bool) {
		o, err := s.orders.Get(orderID)
		if err != nil || o.Status != domain.OrderStatusOpen {
			return 0, false
		}
		return o.RemainingQuantity, true
	})

	return &BookView{Snapshot: snap, Bids: bids, Asks: asks}, nil
}
