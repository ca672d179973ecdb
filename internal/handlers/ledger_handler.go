package handlers

import (
	"net/http"

	"freelance-market/internal/services"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	ledgerService *services.LedgerService
}

func NewLedgerHandler(ledgerService *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// GetBalance returns the caller's credit
// GET /api/ledger/balance
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	balance, err := h.ledgerService.Balance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"credit": balance}})
}

// GetTransactions returns the caller's ledger history
// GET /api/ledger/transactions
func (h *LedgerHandler) GetTransactions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	limit, offset := page(c)
	txs, total, err := h.ledgerService.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, txs, total, limit, offset)
}

// Reconcile checks the caller's balance against the transaction log
// GET /api/ledger/reconcile
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	report, err := h.ledgerService.Reconcile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}
