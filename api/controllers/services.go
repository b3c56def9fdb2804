package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/erpcore/internal/bundles"
	"github.com/angelmondragon/erpcore/internal/catalog"
	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/reservations"
	"github.com/angelmondragon/erpcore/internal/stock"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/pagination"
)

// StockService is the ledger surface exposed over HTTP.
type StockService interface {
	Adjust(ctx context.Context, in stock.AdjustInput) (*stock.AdjustResult, error)
	Balance(ctx context.Context, tenantID, variantID, locationID uuid.UUID) (*stock.Availability, error)
	ListMovements(ctx context.Context, tenantID uuid.UUID, filter stock.MovementFilter, params pagination.Params) (pagination.Page[models.StockMovement], error)
}

type ReservationService interface {
	Reserve(ctx context.Context, in reservations.ReserveInput) (uuid.UUID, error)
	Release(ctx context.Context, tenantID, reservationID uuid.UUID) error
	Get(ctx context.Context, tenantID, reservationID uuid.UUID) (*models.StockReservation, error)
	ExpireSweep(ctx context.Context, tenantID *uuid.UUID) (int64, error)
}

type BundleService interface {
	SellBundle(ctx context.Context, in bundles.SellInput) (*bundles.SellResult, error)
	Components(ctx context.Context, tenantID, parentVariantID uuid.UUID) ([]models.ProductBundle, error)
}

type CatalogService interface {
	CreateLocation(ctx context.Context, in catalog.CreateLocationInput) (*models.Location, error)
	ListLocations(ctx context.Context, tenantID uuid.UUID) ([]models.Location, error)
	CreateVariant(ctx context.Context, in catalog.CreateVariantInput) (*catalog.VariantDetail, error)
	GetVariant(ctx context.Context, tenantID, variantID uuid.UUID) (*catalog.VariantDetail, error)
	AddUnit(ctx context.Context, tenantID, variantID uuid.UUID, in catalog.UnitInput) (*models.UnitDefinition, error)
	CreateCustomer(ctx context.Context, in catalog.CreateCustomerInput) (*models.Customer, error)
	SetBundleComposition(ctx context.Context, tenantID, parentID uuid.UUID, components []catalog.ComponentInput) ([]models.ProductBundle, error)
}

type EventFeed interface {
	List(ctx context.Context, tenantID uuid.UUID, filter events.Filter, params pagination.Params) (pagination.Page[models.Event], error)
}
