package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interview-slots/internal/models"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
	"github.com/noah-isme/interview-slots/pkg/response"
)

type workflowService interface {
	Start(ctx context.Context, candidateID int64) (*models.WorkflowView, error)
	Handle(ctx context.Context, candidateID int64, input models.WorkflowInput) (*models.WorkflowView, error)
}

// WorkflowHandler drives the guided booking dialog.
type WorkflowHandler struct {
	workflow workflowService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(workflow workflowService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

// Start godoc
// @Summary Open the booking dialog at the main menu
// @Tags Workflow
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /workflow/start [post]
func (h *WorkflowHandler) Start(c *gin.Context) {
	candidateID, err := candidateFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.workflow.Start(c.Request.Context(), candidateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Act godoc
// @Summary Apply one dialog action
// @Description Returns the next state with the data needed to render it. Notices explain redirects.
// @Tags Workflow
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.WorkflowInput true "Action"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /workflow/actions [post]
func (h *WorkflowHandler) Act(c *gin.Context) {
	candidateID, err := candidateFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var input models.WorkflowInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workflow payload"))
		return
	}
	view, err := h.workflow.Handle(c.Request.Context(), candidateID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}
