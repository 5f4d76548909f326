package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-paypal-proxy/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LedgerStore is the transaction log. Transition relies on a conditional
// UPDATE guarded by status = 'pending' so that racing completion signals
// resolve to exactly one winner at the database.
type LedgerStore struct {
	db   *bun.DB
	repo repository.Repository[*transactionRecord]
}

func NewLedgerStore(db *bun.DB) (*LedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*transactionRecord](db, transactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid transaction repository wiring: %w", err)
		}
	}
	return &LedgerStore{db: db, repo: repo}, nil
}

// RecordPending upserts on the identity tuple. A matching row is refreshed
// and forced back to pending, which is how checkout re-attempts for the
// same order are absorbed.
func (s *LedgerStore) RecordPending(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	key := core.TransactionKey{
		SiteID:        tx.SiteID,
		OrderID:       tx.OrderID,
		PayPalOrderID: tx.PayPalOrderID,
	}
	if err := validateFullKey(key); err != nil {
		return core.Transaction{}, err
	}

	now := time.Now().UTC()
	var out core.Transaction
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, dbTx bun.Tx) error {
		existing, err := findTransactionTx(ctx, dbTx, key)
		if err != nil {
			return err
		}
		if existing == nil {
			record := newTransactionRecord(tx, now)
			if strings.TrimSpace(record.ID) == "" {
				record.ID = uuid.NewString()
			}
			record.Status = string(core.TransactionStatusPending)
			record.CompletedAt = nil
			if _, insertErr := dbTx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
			out = record.toDomain()
			return nil
		}

		existing.Amount = tx.Amount
		existing.Currency = strings.ToUpper(strings.TrimSpace(tx.Currency))
		existing.Status = string(core.TransactionStatusPending)
		existing.TransactionData = append([]byte(nil), tx.TransactionData...)
		existing.CompletedAt = nil
		if _, updateErr := dbTx.NewUpdate().
			Model(existing).
			WherePK().
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

// Transition moves the matching pending row to a terminal status. When the
// guarded UPDATE touches no rows the row is re-read: a terminal row means a
// concurrent signal already won, a missing row is ErrTransactionNotFound.
func (s *LedgerStore) Transition(ctx context.Context, key core.TransactionKey, to core.TransactionStatus, data []byte) (core.TransitionResult, error) {
	if s == nil || s.db == nil {
		return core.TransitionResult{}, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	if key.Empty() {
		return core.TransitionResult{}, fmt.Errorf("sqlstore: transaction key is required")
	}
	if !to.Terminal() {
		return core.TransitionResult{}, fmt.Errorf("%w: target status %q is not terminal",
			core.ErrInvalidTransactionStatusTransition, to)
	}

	now := time.Now().UTC()
	update := s.db.NewUpdate().
		Model((*transactionRecord)(nil)).
		Set("status = ?", string(to)).
		Set("completed_at = ?", now).
		Where("status = ?", string(core.TransactionStatusPending))
	if len(data) > 0 {
		update = update.Set("transaction_data = ?", data)
	}
	update = applyKeyClauses(update, key)

	result, err := update.Exec(ctx)
	if err != nil {
		return core.TransitionResult{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.TransitionResult{}, err
	}

	current, err := s.Find(ctx, key)
	if err != nil {
		return core.TransitionResult{}, err
	}
	return core.TransitionResult{
		Transaction: current,
		Applied:     affected > 0,
	}, nil
}

func (s *LedgerStore) Find(ctx context.Context, key core.TransactionKey) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	if key.Empty() {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction key is required")
	}

	record := &transactionRecord{}
	query := s.db.NewSelect().Model(record)
	query = applySelectKeyClauses(query, key)
	err := query.
		OrderExpr("?TableAlias.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, core.ErrTransactionNotFound
		}
		return core.Transaction{}, err
	}
	return record.toDomain(), nil
}

func findTransactionTx(ctx context.Context, tx bun.Tx, key core.TransactionKey) (*transactionRecord, error) {
	record := &transactionRecord{}
	query := tx.NewSelect().Model(record)
	query = applySelectKeyClauses(query, key)
	err := query.Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func applyKeyClauses(query *bun.UpdateQuery, key core.TransactionKey) *bun.UpdateQuery {
	if value := strings.TrimSpace(key.SiteID); value != "" {
		query = query.Where("site_id = ?", value)
	}
	if value := strings.TrimSpace(key.OrderID); value != "" {
		query = query.Where("order_id = ?", value)
	}
	if value := strings.TrimSpace(key.PayPalOrderID); value != "" {
		query = query.Where("paypal_order_id = ?", value)
	}
	return query
}

func applySelectKeyClauses(query *bun.SelectQuery, key core.TransactionKey) *bun.SelectQuery {
	if value := strings.TrimSpace(key.SiteID); value != "" {
		query = query.Where("?TableAlias.site_id = ?", value)
	}
	if value := strings.TrimSpace(key.OrderID); value != "" {
		query = query.Where("?TableAlias.order_id = ?", value)
	}
	if value := strings.TrimSpace(key.PayPalOrderID); value != "" {
		query = query.Where("?TableAlias.paypal_order_id = ?", value)
	}
	return query
}

func validateFullKey(key core.TransactionKey) error {
	if strings.TrimSpace(key.SiteID) == "" {
		return fmt.Errorf("sqlstore: site id is required")
	}
	if strings.TrimSpace(key.OrderID) == "" {
		return fmt.Errorf("sqlstore: order id is required")
	}
	if strings.TrimSpace(key.PayPalOrderID) == "" {
		return fmt.Errorf("sqlstore: paypal order id is required")
	}
	return nil
}

var _ core.TransactionLedger = (*LedgerStore)(nil)
