package handlers

import (
	"context"
	"net/http"

	"freelance-market/internal/models"
	"freelance-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader makes accept/reject requests safe to retry
const IdempotencyKeyHeader = "Idempotency-Key"

type ProposalHandler struct {
	proposalService *services.ProposalService
	decisionService *services.DecisionService
}

func NewProposalHandler(
	proposalService *services.ProposalService,
	decisionService *services.DecisionService,
) *ProposalHandler {
	return &ProposalHandler{
		proposalService: proposalService,
		decisionService: decisionService,
	}
}

// SubmitProposal submits a proposal and pays the project's posting fee
// POST /api/proposals
func (h *ProposalHandler) SubmitProposal(c *gin.Context) {
	freelancerID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.proposalService.Submit(c.Request.Context(), freelancerID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": proposal})
}

// ListMyProposals lists the caller's proposals
// GET /api/proposals/mine
func (h *ProposalHandler) ListMyProposals(c *gin.Context) {
	freelancerID, ok := requireUser(c)
	if !ok {
		return
	}

	limit, offset := page(c)
	proposals, total, err := h.proposalService.ListForFreelancer(c.Request.Context(), freelancerID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, proposals, total, limit, offset)
}

// GetProposal returns a proposal to its freelancer or the project's client
// GET /api/proposals/:id
func (h *ProposalHandler) GetProposal(c *gin.Context) {
	viewerID, ok := requireUser(c)
	if !ok {
		return
	}
	proposalID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	proposal, err := h.proposalService.Get(c.Request.Context(), viewerID, proposalID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": proposal})
}

// WithdrawProposal retracts the caller's pending proposal
// POST /api/proposals/:id/withdraw
func (h *ProposalHandler) WithdrawProposal(c *gin.Context) {
	freelancerID, ok := requireUser(c)
	if !ok {
		return
	}
	proposalID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	proposal, err := h.proposalService.Withdraw(c.Request.Context(), freelancerID, proposalID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": proposal})
}

// AcceptProposal accepts a proposal and rejects the rest
// POST /api/proposals/:id/accept
func (h *ProposalHandler) AcceptProposal(c *gin.Context) {
	h.decide(c, h.decisionService.Accept)
}

// RejectProposal rejects a proposal
// POST /api/proposals/:id/reject
func (h *ProposalHandler) RejectProposal(c *gin.Context) {
	h.decide(c, h.decisionService.Reject)
}

func (h *ProposalHandler) decide(
	c *gin.Context,
	apply func(ctx context.Context, clientID, proposalID uuid.UUID, key string) (*services.DecisionResult, error),
) {
	clientID, ok := requireUser(c)
	if !ok {
		return
	}
	proposalID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	result, err := apply(c.Request.Context(), clientID, proposalID, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header(IdempotencyKeyHeader, result.IdempotencyKey)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}
