package models

import "github.com/shopspring/decimal"

// ChallengeRequest is the body of POST /auth/challenge
type ChallengeRequest struct {
	PublicKey string `json:"public_key" binding:"required"`
}

// LoginRequest is the body of POST /auth/login. Signature covers the message returned
// with Nonce by POST /auth/challenge.
type LoginRequest struct {
	PublicKey   string `json:"public_key" binding:"required"`
	Nonce       string `json:"nonce" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// CreateProjectRequest is the body of POST /api/projects
type CreateProjectRequest struct {
	Title       string          `json:"title" binding:"required,max=200"`
	Description string          `json:"description"`
	BudgetType  BudgetType      `json:"budget_type" binding:"required,oneof=fixed hourly"`
	Budget      decimal.Decimal `json:"budget"`
	PostingFee  int64           `json:"posting_fee" binding:"min=0"`
}

// SubmitProposalRequest is the body of POST /api/proposals
type SubmitProposalRequest struct {
	ProjectID         string           `json:"project_id" binding:"required"`
	CoverLetter       string           `json:"cover_letter"`
	ProposedBudget    decimal.Decimal  `json:"proposed_budget"`
	ProposedRate      *decimal.Decimal `json:"proposed_rate"`
	EstimatedDuration string           `json:"estimated_duration"`
	WorkPlan          string           `json:"work_plan"`
	Milestones        []Milestone      `json:"milestones"`
	WorkSamples       []string         `json:"work_samples"`
}

// CreateCatalogRequest is the body of POST /api/catalogs
type CreateCatalogRequest struct {
	Title       string          `json:"title" binding:"required,max=200"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	OrderFee    int64           `json:"order_fee" binding:"min=0"`
}
