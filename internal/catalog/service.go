// Package catalog manages tenant master data: locations, variants with their
// units, customers and bundle compositions.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/internal/events"
	"github.com/angelmondragon/erpcore/internal/limits"
	"github.com/angelmondragon/erpcore/internal/tenancy"
	"github.com/angelmondragon/erpcore/pkg/db"
	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
	"github.com/angelmondragon/erpcore/pkg/logger"
	"github.com/angelmondragon/erpcore/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service struct {
	tx     txRunner
	repo   Repository
	gate   *limits.Gate
	events events.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(tx txRunner, repo Repository, gate *limits.Gate, emitter events.Emitter, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if gate == nil {
		return nil, fmt.Errorf("limit gate required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		tx:     tx,
		repo:   repo,
		gate:   gate,
		events: emitter,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) CreateLocation(ctx context.Context, in CreateLocationInput) (*models.Location, error) {
	if _, err := tenancy.Authorize(ctx, in.TenantID, tenancy.PermCatalog); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location code and name are required")
	}

	loc := &models.Location{TenantID: in.TenantID, Code: code, Name: name, CreatedAt: s.now()}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.gate.WithTx(tx).Check(ctx, in.TenantID, enums.ResourceLocation); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).CreateLocation(ctx, loc); err != nil {
			return conflictOr(err, "location", "location code already exists", map[string]any{"code": code})
		}
		return s.emit(ctx, tx, in.TenantID, enums.EventLocationCreated, enums.AggregateLocation, loc.ID, payloads.LocationCreatedPayload{
			LocationID: loc.ID,
			Code:       loc.Code,
			Name:       loc.Name,
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "create location")
	}
	return loc, nil
}

func (s *Service) ListLocations(ctx context.Context, tenantID uuid.UUID) ([]models.Location, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return nil, err
	}
	locs, err := s.repo.ListLocations(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list locations")
	}
	return locs, nil
}

// CreateVariant writes the variant and its units together. At most one unit
// may be the base, and a base unit has factor 1.
func (s *Service) CreateVariant(ctx context.Context, in CreateVariantInput) (*VariantDetail, error) {
	if _, err := tenancy.Authorize(ctx, in.TenantID, tenancy.PermCatalog); err != nil {
		return nil, err
	}
	sku := strings.TrimSpace(in.SKU)
	name := strings.TrimSpace(in.Name)
	if sku == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if err := validateUnits(in.Units); err != nil {
		return nil, err
	}

	now := s.now()
	detail := &VariantDetail{
		Variant: models.ProductVariant{TenantID: in.TenantID, SKU: sku, Name: name, CreatedAt: now},
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.gate.WithTx(tx).Check(ctx, in.TenantID, enums.ResourceVariant); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		if err := repo.CreateVariant(ctx, &detail.Variant); err != nil {
			return conflictOr(err, "variant", "sku already exists", map[string]any{"sku": sku})
		}
		unitIDs := make([]uuid.UUID, 0, len(in.Units))
		for _, u := range in.Units {
			unit := newUnit(in.TenantID, detail.Variant.ID, u, now)
			if err := repo.CreateUnit(ctx, &unit); err != nil {
				return conflictOr(err, "unit", "unit code already exists", map[string]any{"code": unit.Code})
			}
			detail.Units = append(detail.Units, unit)
			unitIDs = append(unitIDs, unit.ID)
		}
		return s.emit(ctx, tx, in.TenantID, enums.EventVariantCreated, enums.AggregateVariant, detail.Variant.ID, payloads.VariantCreatedPayload{
			VariantID: detail.Variant.ID,
			SKU:       sku,
			Name:      name,
			UnitIDs:   unitIDs,
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "create variant")
	}
	return detail, nil
}

func (s *Service) GetVariant(ctx context.Context, tenantID, variantID uuid.UUID) (*VariantDetail, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermRead); err != nil {
		return nil, err
	}
	variant, err := s.findVariant(ctx, s.repo, tenantID, variantID)
	if err != nil {
		return nil, err
	}
	units, err := s.repo.ListUnits(ctx, variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list units")
	}
	return &VariantDetail{Variant: *variant, Units: units}, nil
}

// AddUnit attaches one more unit to an existing variant.
func (s *Service) AddUnit(ctx context.Context, tenantID, variantID uuid.UUID, in UnitInput) (*models.UnitDefinition, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermCatalog); err != nil {
		return nil, err
	}
	if err := validateUnits([]UnitInput{in}); err != nil {
		return nil, err
	}

	var unit models.UnitDefinition
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.findVariant(ctx, repo, tenantID, variantID); err != nil {
			return err
		}
		if in.IsBase {
			existing, err := repo.ListUnits(ctx, variantID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list units")
			}
			for _, u := range existing {
				if u.IsBase {
					return pkgerrors.New(pkgerrors.CodeConflict, "variant already has a base unit").
						WithDetails(map[string]any{"base_unit_id": u.ID})
				}
			}
		}
		unit = newUnit(tenantID, variantID, in, s.now())
		if err := repo.CreateUnit(ctx, &unit); err != nil {
			return conflictOr(err, "unit", "unit code already exists", map[string]any{"code": unit.Code})
		}
		return s.emit(ctx, tx, tenantID, enums.EventUnitAdded, enums.AggregateVariant, variantID, payloads.UnitAddedPayload{
			UnitID:    unit.ID,
			VariantID: variantID,
			Code:      unit.Code,
			Factor:    unit.Factor,
			IsBase:    unit.IsBase,
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "add unit")
	}
	return &unit, nil
}

func (s *Service) CreateCustomer(ctx context.Context, in CreateCustomerInput) (*models.Customer, error) {
	if _, err := tenancy.Authorize(ctx, in.TenantID, tenancy.PermCatalog); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}

	customer := &models.Customer{
		TenantID:  in.TenantID,
		Name:      name,
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: s.now(),
	}
	if len(in.Metadata) > 0 {
		customer.Metadata = datatypes.JSONMap(in.Metadata)
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.gate.WithTx(tx).Check(ctx, in.TenantID, enums.ResourceCustomer); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).CreateCustomer(ctx, customer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert customer")
		}
		return s.emit(ctx, tx, in.TenantID, enums.EventCustomerCreated, enums.AggregateCustomer, customer.ID, payloads.CustomerCreatedPayload{
			CustomerID: customer.ID,
			Name:       customer.Name,
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "create customer")
	}
	return customer, nil
}

// SetBundleComposition replaces every edge of parent. Bundles are one level
// deep: a parent cannot be a component and a component cannot be a parent.
// An empty list clears the composition.
func (s *Service) SetBundleComposition(ctx context.Context, tenantID, parentID uuid.UUID, components []ComponentInput) ([]models.ProductBundle, error) {
	if _, err := tenancy.Authorize(ctx, tenantID, tenancy.PermCatalog); err != nil {
		return nil, err
	}
	childIDs := make([]uuid.UUID, 0, len(components))
	seen := make(map[uuid.UUID]struct{}, len(components))
	for _, c := range components {
		if c.ChildVariantID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "child variant is required")
		}
		if c.ChildVariantID == parentID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle cannot contain itself")
		}
		if _, dup := seen[c.ChildVariantID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate bundle component").
				WithDetails(map[string]any{"child_variant_id": c.ChildVariantID})
		}
		if !c.Quantity.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "component quantity must be positive").
				WithDetails(map[string]any{"child_variant_id": c.ChildVariantID})
		}
		seen[c.ChildVariantID] = struct{}{}
		childIDs = append(childIDs, c.ChildVariantID)
	}

	var edges []models.ProductBundle
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.findVariant(ctx, repo, tenantID, parentID); err != nil {
			return err
		}
		if len(childIDs) > 0 {
			if err := s.checkComponents(ctx, repo, tenantID, parentID, childIDs); err != nil {
				return err
			}
		}

		current, err := repo.BundleEdges(ctx, tenantID, parentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bundle edges")
		}
		added := int64(len(components) - len(current))
		if err := s.gate.WithTx(tx).CheckN(ctx, tenantID, enums.ResourceBundleEdge, added); err != nil {
			return err
		}

		if err := repo.DeleteBundleEdges(ctx, tenantID, parentID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear bundle edges")
		}
		now := s.now()
		summary := make([]payloads.BundleComponent, 0, len(components))
		for _, c := range components {
			edges = append(edges, models.ProductBundle{
				TenantID:        tenantID,
				ParentVariantID: parentID,
				ChildVariantID:  c.ChildVariantID,
				Quantity:        c.Quantity,
				CreatedAt:       now,
			})
			summary = append(summary, payloads.BundleComponent{ChildVariantID: c.ChildVariantID, Quantity: c.Quantity})
		}
		if err := repo.CreateBundleEdges(ctx, edges); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert bundle edges")
		}
		return s.emit(ctx, tx, tenantID, enums.EventBundleComposed, enums.AggregateBundle, parentID, payloads.BundleComposedPayload{
			ParentVariantID: parentID,
			Components:      summary,
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "set bundle composition")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id":  tenantID.String(),
		"parent_id":  parentID.String(),
		"components": len(edges),
	})
	s.logg.Info(logCtx, "bundle composition replaced")
	return edges, nil
}

func (s *Service) checkComponents(ctx context.Context, repo Repository, tenantID, parentID uuid.UUID, childIDs []uuid.UUID) error {
	n, err := repo.CountVariants(ctx, tenantID, childIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup components")
	}
	if n != int64(len(childIDs)) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "component variant not found")
	}
	nested, err := repo.IsBundleParent(ctx, tenantID, childIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup nested bundles")
	}
	if nested {
		return pkgerrors.New(pkgerrors.CodeValidation, "bundle components cannot be bundles")
	}
	used, err := repo.UsedAsComponent(ctx, tenantID, parentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup parent usage")
	}
	if used {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant is a component of another bundle")
	}
	return nil
}

func (s *Service) findVariant(ctx context.Context, repo Repository, tenantID, variantID uuid.UUID) (*models.ProductVariant, error) {
	variant, err := repo.FindVariant(ctx, tenantID, variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if variant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
			WithDetails(map[string]any{"variant_id": variantID})
	}
	return variant, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, eventType enums.EventType, aggregate enums.AggregateType, aggregateID uuid.UUID, data any) error {
	_, err := s.events.Emit(ctx, tx, events.DomainEvent{
		TenantID:      tenantID,
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		OccurredAt:    s.now(),
		Data:          data,
	})
	return err
}

func validateUnits(units []UnitInput) error {
	bases := 0
	codes := make(map[string]struct{}, len(units))
	for _, u := range units {
		code := strings.TrimSpace(u.Code)
		if code == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "unit code is required")
		}
		if _, dup := codes[code]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate unit code").
				WithDetails(map[string]any{"code": code})
		}
		codes[code] = struct{}{}
		if !u.Factor.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "unit factor must be positive").
				WithDetails(map[string]any{"code": code})
		}
		if u.IsBase {
			bases++
			if !u.Factor.Equal(decimal.NewFromInt(1)) {
				return pkgerrors.New(pkgerrors.CodeValidation, "base unit factor must be 1").
					WithDetails(map[string]any{"code": code})
			}
		}
	}
	if bases > 1 {
		return pkgerrors.New(pkgerrors.CodeMissingBaseUnit, "variant must have exactly one base unit").
			WithDetails(map[string]any{"base_units": bases})
	}
	return nil
}

func newUnit(tenantID, variantID uuid.UUID, in UnitInput, now time.Time) models.UnitDefinition {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = code
	}
	return models.UnitDefinition{
		TenantID:  tenantID,
		VariantID: variantID,
		Code:      code,
		Name:      name,
		Factor:    in.Factor,
		IsBase:    in.IsBase,
		CreatedAt: now,
	}
}

func conflictOr(err error, entity, message string, details map[string]any) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, message).WithDetails(details)
	}
	if db.IsCheckViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, entity+" violates a catalog constraint").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert "+entity)
}
