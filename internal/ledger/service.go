package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/erpcore/pkg/db/models"
	"github.com/angelmondragon/erpcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/erpcore/pkg/errors"
)

// Service records immutable payments and refunds against orders.
type Service interface {
	RecordTx(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.FinancialTransaction, error)
	ListForOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.FinancialTransaction, error)
	Sum(ctx context.Context, tenantID, orderID uuid.UUID, txnType enums.TransactionType) (decimal.Decimal, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data a financial transaction requires.
type RecordInput struct {
	TenantID    uuid.UUID             `json:"tenant_id"`
	OrderID     uuid.UUID             `json:"order_id"`
	ActorUserID uuid.UUID             `json:"actor_user_id"`
	Type        enums.TransactionType `json:"type"`
	Amount      decimal.Decimal       `json:"amount"`
	Method      *enums.PaymentMethod  `json:"method,omitempty"`
	Reason      *string               `json:"reason,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// RecordTx inserts the transaction in the caller's tx. Authorization and the
// order's existence are the caller's concern.
func (s *service) RecordTx(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.FinancialTransaction, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}
	if input.Type == enums.TransactionPayment {
		if input.Method == nil || !input.Method.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid payment method is required")
		}
	}

	txn := &models.FinancialTransaction{
		TenantID:    input.TenantID,
		OrderID:     input.OrderID,
		Type:        input.Type,
		Amount:      input.Amount,
		Method:      input.Method,
		Reason:      input.Reason,
		ActorUserID: input.ActorUserID,
	}
	if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert financial transaction")
	}
	return txn, nil
}

func (s *service) ListForOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]models.FinancialTransaction, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	txns, err := s.repo.ListByOrderID(ctx, tenantID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list financial transactions")
	}
	return txns, nil
}

// Sum totals the order's transactions of one type.
func (s *service) Sum(ctx context.Context, tenantID, orderID uuid.UUID, txnType enums.TransactionType) (decimal.Decimal, error) {
	if !txnType.IsValid() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", txnType))
	}
	txns, err := s.ListForOrder(ctx, tenantID, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, txn := range txns {
		if txn.Type == txnType {
			total = total.Add(txn.Amount)
		}
	}
	return total, nil
}
