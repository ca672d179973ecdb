package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freelance-market/internal/metrics"
	"freelance-market/internal/models"
	"freelance-market/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerRef points a transaction at the entity that caused it
type LedgerRef struct {
	Type string
	ID   uuid.UUID
}

// ReconciliationReport compares the denormalized balance with the transaction log
type ReconciliationReport struct {
	UserID         uuid.UUID `json:"user_id"`
	Credit         int64     `json:"credit"`
	InitialCredit  int64     `json:"initial_credit"`
	TransactionSum int64     `json:"transaction_sum"`
	EntryCount     int64     `json:"entry_count"`
	Drift          int64     `json:"drift"`
	Balanced       bool      `json:"balanced"`
}

// LedgerService owns every change to a profile's credit. Debit and Credit take the
// caller's transaction so the balance change, its record and the caller's own writes
// commit or roll back together.
type LedgerService struct {
	repo *repository.Repository
}

func NewLedgerService(repo *repository.Repository) *LedgerService {
	return &LedgerService{repo: repo}
}

// Debit subtracts amount from the user's credit if the balance covers it and records
// the transaction. The check and the update are one conditional statement.
func (s *LedgerService) Debit(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
	amount int64,
	txType models.TransactionType,
	ref LedgerRef,
) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	res := tx.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ? AND credit >= ?", userID, amount).
		Updates(map[string]interface{}{
			"credit":     gorm.Expr("credit - ?", amount),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to debit credit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.repo.WithTx(tx).GetProfileByID(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrProfileNotFound
			}
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		metrics.InsufficientCredit.Inc()
		return nil, ErrInsufficientCredit
	}

	balance, err := s.readBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	return s.record(ctx, tx, userID, amount, txType, models.DirectionOut, balance+amount, balance, ref)
}

// Credit adds amount to the user's credit and records the transaction
func (s *LedgerService) Credit(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
	amount int64,
	txType models.TransactionType,
	ref LedgerRef,
) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	res := tx.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"credit":     gorm.Expr("credit + ?", amount),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to credit balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProfileNotFound
	}

	balance, err := s.readBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	return s.record(ctx, tx, userID, amount, txType, models.DirectionIn, balance-amount, balance, ref)
}

func (s *LedgerService) readBalance(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.WithContext(ctx).
		Model(&models.Profile{}).
		Select("credit").
		Where("id = ?", userID).
		Scan(&balance).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

func (s *LedgerService) record(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
	amount int64,
	txType models.TransactionType,
	direction models.Direction,
	previous int64,
	current int64,
	ref LedgerRef,
) (*models.Transaction, error) {
	entry := &models.Transaction{
		UserID:          userID,
		Type:            txType,
		Direction:       direction,
		Amount:          amount,
		PreviousBalance: previous,
		NewBalance:      current,
		ReferenceType:   ref.Type,
	}
	if ref.ID != uuid.Nil {
		refID := ref.ID
		entry.ReferenceID = &refID
	}

	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return entry, nil
}

// Balance returns the user's current credit
func (s *LedgerService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.Credit, nil
}

// History returns the user's transactions newest first
func (s *LedgerService) History(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
	offset int,
) ([]*models.Transaction, int64, error) {
	limit, offset = normalizePage(limit, offset)
	txs, total, err := s.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, total, nil
}

// Reconcile checks that the transaction log explains the user's balance:
// sum(in) - sum(out) must equal credit - initialCredit.
func (s *LedgerService) Reconcile(ctx context.Context, userID uuid.UUID) (*ReconciliationReport, error) {
	profile, err := s.repo.GetProfileByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	sum, count, err := s.repo.SumSignedTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}

	drift := profile.Credit - profile.InitialCredit - sum
	return &ReconciliationReport{
		UserID:         userID,
		Credit:         profile.Credit,
		InitialCredit:  profile.InitialCredit,
		TransactionSum: sum,
		EntryCount:     count,
		Drift:          drift,
		Balanced:       drift == 0,
	}, nil
}

// ReconcileAll reconciles every profile
func (s *LedgerService) ReconcileAll(ctx context.Context) ([]*ReconciliationReport, error) {
	ids, err := s.repo.ListProfileIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	reports := make([]*ReconciliationReport, 0, len(ids))
	for _, id := range ids {
		report, err := s.Reconcile(ctx, id)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// observeLedger counts committed ledger entries
func observeLedger(entries ...*models.Transaction) {
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		labels := []string{string(entry.Type), string(entry.Direction)}
		metrics.LedgerEntries.WithLabelValues(labels...).Inc()
		metrics.LedgerCredits.WithLabelValues(labels...).Add(float64(entry.Amount))
	}
}
