package handlers

import (
	"net/http"
	"time"

	"freelance-market/internal/auth"
	"freelance-market/internal/models"
	"freelance-market/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth         *AuthHandler
	Project      *ProjectHandler
	Proposal     *ProposalHandler
	Ledger       *LedgerHandler
	Order        *OrderHandler
	Notification *NotificationHandler
}

// RouterConfig holds router-level settings
type RouterConfig struct {
	AllowedOrigins []string
	MetricsPath    string // empty disables /metrics
}

// NewRouter mounts all routes on a new gin engine
func NewRouter(h *Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	if cfg.MetricsPath != "" {
		router.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	router.POST("/auth/challenge", h.Auth.Challenge)
	router.POST("/auth/login", h.Auth.Login)

	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", h.Auth.GetMe)
	}

	// Public browsing
	router.GET("/api/projects", h.Project.ListProjects)
	router.GET("/api/projects/:id", h.Project.GetProject)
	router.GET("/api/catalogs", h.Order.ListCatalogs)

	client := auth.RequireRole(models.RoleClient)
	freelancer := auth.RequireRole(models.RoleFreelancer)

	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/projects", client, h.Project.CreateProject)
		api.POST("/projects/:id/complete", client, h.Project.CompleteProject)
		api.POST("/projects/:id/cancel", client, h.Project.CancelProject)
		api.GET("/projects/:id/proposals", h.Project.ListProjectProposals)
		api.GET("/projects/:id/verify", h.Project.VerifyProject)

		// /mine must be registered before /:id
		api.POST("/proposals", freelancer, h.Proposal.SubmitProposal)
		api.GET("/proposals/mine", h.Proposal.ListMyProposals)
		api.GET("/proposals/:id", h.Proposal.GetProposal)
		api.POST("/proposals/:id/withdraw", freelancer, h.Proposal.WithdrawProposal)
		api.POST("/proposals/:id/accept", client, h.Proposal.AcceptProposal)
		api.POST("/proposals/:id/reject", client, h.Proposal.RejectProposal)

		api.GET("/ledger/balance", h.Ledger.GetBalance)
		api.GET("/ledger/transactions", h.Ledger.GetTransactions)
		api.GET("/ledger/reconcile", h.Ledger.Reconcile)

		api.POST("/catalogs", h.Order.CreateCatalog)
		api.POST("/catalogs/:id/orders", h.Order.PlaceOrder)
		api.GET("/orders/mine", h.Order.ListMyOrders)

		api.GET("/notifications", h.Notification.ListNotifications)
		api.POST("/notifications/:id/read", h.Notification.MarkRead)
	}

	return router
}

// corsConfig allows any origin without credentials when no origin is configured
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", IdempotencyKeyHeader},
		ExposeHeaders:    []string{"Content-Length", IdempotencyKeyHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// New builds every handler from the service graph
func New(svc *services.Services) *Handlers {
	return &Handlers{
		Auth:         NewAuthHandler(svc.Auth),
		Project:      NewProjectHandler(svc.Projects, svc.Proposals, svc.Decisions),
		Proposal:     NewProposalHandler(svc.Proposals, svc.Decisions),
		Ledger:       NewLedgerHandler(svc.Ledger),
		Order:        NewOrderHandler(svc.Orders),
		Notification: NewNotificationHandler(svc.Notifications),
	}
}
