package services

import (
	"context"
	"sync"
	"testing"

	"freelance-market/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDebitRecordsBalances(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	user := createProfile(t, db, models.RoleFreelancer, 10)
	ref := LedgerRef{Type: "proposal", ID: uuid.New()}

	entry, err := svc.Ledger.Debit(ctx, db, user.ID, 10, models.TransactionTypeProposalFee, ref)
	require.NoError(t, err)

	assert.Equal(t, int64(10), entry.PreviousBalance)
	assert.Equal(t, int64(0), entry.NewBalance)
	assert.Equal(t, models.DirectionOut, entry.Direction)
	require.NotNil(t, entry.ReferenceID)
	assert.Equal(t, ref.ID, *entry.ReferenceID)

	reloaded := reloadProfile(t, db, user.ID)
	assert.Equal(t, int64(0), reloaded.Credit)
	assert.Equal(t, int64(1), reloaded.Version)
	requireBalanced(t, svc, user.ID)
}

func TestDebitRefusesOverdraft(t *testing.T) {
	db, svc := setupServices(t)
	user := createProfile(t, db, models.RoleFreelancer, 4)

	_, err := svc.Ledger.Debit(context.Background(), db, user.ID, 5, models.TransactionTypeProposalFee, LedgerRef{})
	require.ErrorIs(t, err, ErrInsufficientCredit)

	assert.Equal(t, int64(4), reloadProfile(t, db, user.ID).Credit)
	assert.Empty(t, transactionsFor(t, db, user.ID))
}

func TestDebitUnknownProfile(t *testing.T) {
	db, svc := setupServices(t)

	_, err := svc.Ledger.Debit(context.Background(), db, uuid.New(), 1, models.TransactionTypeProposalFee, LedgerRef{})
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	db, svc := setupServices(t)
	user := createProfile(t, db, models.RoleFreelancer, 10)
	ctx := context.Background()

	_, err := svc.Ledger.Debit(ctx, db, user.ID, 0, models.TransactionTypeProposalFee, LedgerRef{})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Ledger.Credit(ctx, db, user.ID, -3, models.TransactionTypeProposalRefund, LedgerRef{})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreditRecordsBalances(t *testing.T) {
	db, svc := setupServices(t)
	user := createProfile(t, db, models.RoleFreelancer, 0)

	entry, err := svc.Ledger.Credit(context.Background(), db, user.ID, 5, models.TransactionTypeProposalRefund, LedgerRef{})
	require.NoError(t, err)

	assert.Equal(t, int64(0), entry.PreviousBalance)
	assert.Equal(t, int64(5), entry.NewBalance)
	assert.Nil(t, entry.ReferenceID)
	assert.Equal(t, int64(5), reloadProfile(t, db, user.ID).Credit)
}

func TestDebitRollsBackWithCallerTransaction(t *testing.T) {
	db, svc := setupServices(t)
	user := createProfile(t, db, models.RoleFreelancer, 10)

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Ledger.Debit(context.Background(), tx, user.ID, 3, models.TransactionTypeProposalFee, LedgerRef{}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, int64(10), reloadProfile(t, db, user.ID).Credit)
	assert.Empty(t, transactionsFor(t, db, user.ID))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	db, svc := setupServices(t)
	user := createProfile(t, db, models.RoleFreelancer, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				_, err := svc.Ledger.Debit(context.Background(), tx, user.ID, 3, models.TransactionTypeProposalFee, LedgerRef{})
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInsufficientCredit)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, int64(1), reloadProfile(t, db, user.ID).Credit)
	requireBalanced(t, svc, user.ID)
}

func TestReconcileDetectsDrift(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	user := createProfile(t, db, models.RoleFreelancer, 20)

	_, err := svc.Ledger.Debit(ctx, db, user.ID, 7, models.TransactionTypeProposalFee, LedgerRef{})
	require.NoError(t, err)
	_, err = svc.Ledger.Credit(ctx, db, user.ID, 2, models.TransactionTypeProposalRefund, LedgerRef{})
	require.NoError(t, err)

	report, err := svc.Ledger.Reconcile(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, report.Balanced)
	assert.Equal(t, int64(-5), report.TransactionSum)
	assert.Equal(t, int64(2), report.EntryCount)

	// A write that bypasses the ledger shows up as drift.
	require.NoError(t, db.Model(&models.Profile{}).Where("id = ?", user.ID).Update("credit", 100).Error)

	reports, err := svc.Ledger.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Balanced)
	assert.Equal(t, int64(85), reports[0].Drift)
}

func TestHistoryPagesNewestFirst(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	user := createProfile(t, db, models.RoleFreelancer, 10)

	for i := 0; i < 3; i++ {
		_, err := svc.Ledger.Debit(ctx, db, user.ID, 1, models.TransactionTypeProposalFee, LedgerRef{})
		require.NoError(t, err)
	}

	txs, total, err := svc.Ledger.History(ctx, user.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(7), txs[0].NewBalance)

	balance, err := svc.Ledger.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance)
}
