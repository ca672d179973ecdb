package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"freelance-market/internal/database"
	"freelance-market/internal/models"
	"freelance-market/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db         *gorm.DB
	svc        *services.Services
	client     *models.Profile
	freelancer *models.Profile
	project    *models.Project
}

// setupMarket seeds a sqlite file and points the command environment at it
func setupMarket(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "market.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", path)
	t.Setenv("JWT_SECRET", "marketctl-test-secret")
	t.Setenv("NATS_URL", "")

	db, err := database.Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{db: db, svc: services.New(db, 50)}
	f.client = createProfile(t, db, models.RoleClient, 0)
	f.freelancer = createProfile(t, db, models.RoleFreelancer, 20)
	f.project = &models.Project{
		ClientID:   f.client.ID,
		Title:      "Data pipeline audit",
		BudgetType: models.BudgetTypeFixed,
		Budget:     decimal.NewFromInt(800),
		PostingFee: 5,
		Status:     models.ProjectStatusOpen,
	}
	require.NoError(t, db.Create(f.project).Error)

	_, err = f.svc.Proposals.Submit(context.Background(), f.freelancer.ID, &models.SubmitProposalRequest{
		ProjectID:         f.project.ID.String(),
		CoverLetter:       "Audited three of these last quarter.",
		ProposedBudget:    decimal.NewFromInt(750),
		EstimatedDuration: "10 days",
	})
	require.NoError(t, err)
	return f
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

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	reconcileUser, reconcileDriftOnly = "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReconcile(t *testing.T) {
	f := setupMarket(t)

	out, err := run(t, "reconcile")
	require.NoError(t, err, out)
	assert.Contains(t, out, f.client.ID.String())
	assert.Contains(t, out, f.freelancer.ID.String())
	assert.Contains(t, out, "0/2")

	require.NoError(t, f.db.Model(&models.Profile{}).
		Where("id = ?", f.freelancer.ID).Update("credit", 40).Error)

	out, err = run(t, "reconcile", "--drift-only")
	require.EqualError(t, err, "1 profiles out of balance")
	assert.Contains(t, out, f.freelancer.ID.String())
	assert.NotContains(t, out, f.client.ID.String())
	assert.Contains(t, out, "DRIFT")
	assert.Contains(t, out, "1/2")

	out, err = run(t, "reconcile", "--user", f.client.ID.String())
	require.NoError(t, err, out)
	assert.Contains(t, out, "0/1")

	_, err = run(t, "reconcile", "--user", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid --user")
}

func TestVerifyProject(t *testing.T) {
	f := setupMarket(t)

	out, err := run(t, "verify-project", f.project.ID.String())
	require.NoError(t, err, out)
	assert.Contains(t, out, "OK: no violations")

	// a rejected proposal without its refund entry
	require.NoError(t, f.db.Model(&models.Proposal{}).
		Where("project_id = ?", f.project.ID).Update("status", models.ProposalStatusRejected).Error)

	out, err = run(t, "verify-project", f.project.ID.String())
	require.EqualError(t, err, "1 violations")
	assert.Contains(t, out, "ledger entries net to -5")

	_, err = run(t, "verify-project", "nope")
	assert.ErrorContains(t, err, "invalid project id")
}

func TestOutboxStatsAndDrain(t *testing.T) {
	f := setupMarket(t)

	out, err := run(t, "outbox", "drain")
	require.NoError(t, err, out)
	assert.Contains(t, out, "leased=1 delivered=1 retrying=0 dead=0")

	var inbox []models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", f.client.ID).Find(&inbox).Error)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.EventProposalSubmitted, inbox[0].Kind)

	out, err = run(t, "outbox", "stats")
	require.NoError(t, err, out)
	assert.Contains(t, out, string(models.OutboxStatusDelivered))

	out, err = run(t, "outbox", "drain")
	require.NoError(t, err, out)
	assert.Contains(t, out, "leased=0 delivered=0")
}

func TestPurgeChallenges(t *testing.T) {
	f := setupMarket(t)
	ctx := context.Background()

	stale, _, err := f.svc.Auth.Challenge(ctx, "11111111111111111111111111111111")
	require.NoError(t, err)
	_, _, err = f.svc.Auth.Challenge(ctx, "11111111111111111111111111111111")
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.LoginChallenge{}).Where("id = ?", stale.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	out, err := run(t, "auth", "purge-challenges")
	require.NoError(t, err, out)
	assert.Contains(t, out, "purged 1 login challenges")

	var left int64
	require.NoError(t, f.db.Model(&models.LoginChallenge{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}
