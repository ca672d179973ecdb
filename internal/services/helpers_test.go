package services

import (
	"context"
	"testing"

	"freelance-market/internal/database"
	"freelance-market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// :memory: is private per connection and Open pins sqlite to one connection.
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateDB(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func setupServices(t *testing.T) (*gorm.DB, *Services) {
	t.Helper()
	db := setupTestDB(t)
	return db, New(db, 50)
}

func createProfile(t *testing.T, db *gorm.DB, role models.Role, credit int64) *models.Profile {
	t.Helper()
	profile := &models.Profile{
		PublicKey:     uuid.NewString(),
		DisplayName:   string(role) + "-" + uuid.NewString()[:4],
		Role:          role,
		Credit:        credit,
		InitialCredit: credit,
	}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

func createProject(t *testing.T, db *gorm.DB, clientID uuid.UUID, fee int64, budgetType models.BudgetType) *models.Project {
	t.Helper()
	project := &models.Project{
		ClientID:   clientID,
		Title:      "Landing page redesign",
		BudgetType: budgetType,
		Budget:     decimal.NewFromInt(500),
		PostingFee: fee,
		Status:     models.ProjectStatusOpen,
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

func proposalRequest(projectID uuid.UUID) *models.SubmitProposalRequest {
	return &models.SubmitProposalRequest{
		ProjectID:         projectID.String(),
		CoverLetter:       "I have shipped a dozen of these.",
		ProposedBudget:    decimal.NewFromInt(450),
		EstimatedDuration: "2 weeks",
	}
}

func submitProposal(t *testing.T, svc *Services, freelancerID, projectID uuid.UUID) *models.Proposal {
	t.Helper()
	proposal, err := svc.Proposals.Submit(context.Background(), freelancerID, proposalRequest(projectID))
	require.NoError(t, err)
	return proposal
}

func reloadProfile(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Profile {
	t.Helper()
	var profile models.Profile
	require.NoError(t, db.First(&profile, "id = ?", id).Error)
	return &profile
}

func reloadProposal(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Proposal {
	t.Helper()
	var proposal models.Proposal
	require.NoError(t, db.First(&proposal, "id = ?", id).Error)
	return &proposal
}

func reloadProject(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Project {
	t.Helper()
	var project models.Project
	require.NoError(t, db.First(&project, "id = ?", id).Error)
	return &project
}

func transactionsFor(t *testing.T, db *gorm.DB, userID uuid.UUID) []models.Transaction {
	t.Helper()
	var txs []models.Transaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at ASC").Find(&txs).Error)
	return txs
}

func requireBalanced(t *testing.T, svc *Services, userID uuid.UUID) {
	t.Helper()
	report, err := svc.Ledger.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, report.Balanced, "drift %d for %s", report.Drift, userID)
}
