package models

import (
	"errors"

	"github.com/google/uuid"
)

// ErrImmutable is returned by hooks on append-only tables.
var ErrImmutable = errors.New("row is immutable")

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&Location{},
		&ProductVariant{},
		&UnitDefinition{},
		&Customer{},
		&StockLevel{},
		&StockMovement{},
		&StockReservation{},
		&ProductBundle{},
		&Order{},
		&OrderLine{},
		&FinancialTransaction{},
		&Event{},
		&EventDelivery{},
	}
}
