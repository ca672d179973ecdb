package handlers

import (
	"context"
	"net/http"

	"freelance-market/internal/models"
	"freelance-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProjectHandler struct {
	projectService  *services.ProjectService
	proposalService *services.ProposalService
	decisionService *services.DecisionService
}

func NewProjectHandler(
	projectService *services.ProjectService,
	proposalService *services.ProposalService,
	decisionService *services.DecisionService,
) *ProjectHandler {
	return &ProjectHandler{
		projectService:  projectService,
		proposalService: proposalService,
		decisionService: decisionService,
	}
}

// CreateProject posts a new project
// POST /api/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	clientID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), clientID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": project})
}

// ListProjects lists projects, optionally by status
// GET /api/projects?status=open&limit=20&offset=0
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	limit, offset := page(c)
	projects, total, err := h.projectService.List(
		c.Request.Context(), models.ProjectStatus(c.Query("status")), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, projects, total, limit, offset)
}

// GetProject returns one project
// GET /api/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": project})
}

// CompleteProject marks the caller's in-progress project completed
// POST /api/projects/:id/complete
func (h *ProjectHandler) CompleteProject(c *gin.Context) {
	h.transition(c, h.projectService.Complete)
}

// CancelProject cancels the caller's open project and refunds pending proposals
// POST /api/projects/:id/cancel
func (h *ProjectHandler) CancelProject(c *gin.Context) {
	h.transition(c, h.projectService.Cancel)
}

func (h *ProjectHandler) transition(
	c *gin.Context,
	apply func(ctx context.Context, clientID, projectID uuid.UUID) (*models.Project, error),
) {
	clientID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	project, err := apply(c.Request.Context(), clientID, projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": project})
}

// ListProjectProposals lists a project's proposals visible to the caller
// GET /api/projects/:id/proposals
func (h *ProjectHandler) ListProjectProposals(c *gin.Context) {
	viewerID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	proposals, err := h.proposalService.ListForProject(c.Request.Context(), viewerID, projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": proposals})
}

// VerifyProject reports proposal/refund invariant violations for a project
// GET /api/projects/:id/verify
func (h *ProjectHandler) VerifyProject(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	projectID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	report, err := h.decisionService.VerifyProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}
