package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/http/response"
	"github.com/leasingborsen/listing-reconciler/internal/platform/ctxutil"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
	"github.com/leasingborsen/listing-reconciler/internal/services"
)

var errNoReviewer = errors.New("reviewer identity required")

type ChangeHandler struct {
	log    *logger.Logger
	review services.ReviewService
}

func NewChangeHandler(log *logger.Logger, review services.ReviewService) *ChangeHandler {
	return &ChangeHandler{log: log.With("handler", "ChangeHandler"), review: review}
}

// GET /api/sessions/:id/changes?type=&status=
func (h *ChangeHandler) ListChanges(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	f := repos.ChangeFilter{
		ChangeType:   strings.TrimSpace(c.Query("type")),
		ChangeStatus: strings.TrimSpace(c.Query("status")),
	}
	out, err := h.review.ListChanges(c.Request.Context(), sessionID, f)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"changes": out})
}

// GET /api/sessions/:id/changes/:changeId
func (h *ChangeHandler) GetChange(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	changeID, ok := uuidParam(c, "changeId", "invalid_change_id")
	if !ok {
		return
	}
	ch, err := h.review.GetChange(c.Request.Context(), sessionID, changeID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"change": ch})
}

type reviewRequest struct {
	Reviewer string `json:"reviewer"`
}

type transitionFunc func(ctx context.Context, sessionID, changeID uuid.UUID, reviewer string) (*types.Change, error)

// POST /api/sessions/:id/changes/:changeId/approve
func (h *ChangeHandler) Approve(c *gin.Context) { h.transition(c, h.review.Approve) }

// POST /api/sessions/:id/changes/:changeId/reject
func (h *ChangeHandler) Reject(c *gin.Context) { h.transition(c, h.review.Reject) }

// POST /api/sessions/:id/changes/:changeId/reset
func (h *ChangeHandler) Reset(c *gin.Context) { h.transition(c, h.review.Reset) }

func (h *ChangeHandler) transition(c *gin.Context, fn transitionFunc) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	changeID, ok := uuidParam(c, "changeId", "invalid_change_id")
	if !ok {
		return
	}
	var req reviewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	reviewer, ok := actor(c, req.Reviewer)
	if !ok {
		return
	}
	ch, err := fn(c.Request.Context(), sessionID, changeID, reviewer)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"change": ch})
}

type approveAllRequest struct {
	ChangeType string `json:"change_type"`
	Reviewer   string `json:"reviewer"`
}

// POST /api/sessions/:id/changes/approve-all
func (h *ChangeHandler) ApproveAll(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	var req approveAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	reviewer, ok := actor(c, req.Reviewer)
	if !ok {
		return
	}
	ids, err := h.review.ApproveAllOfType(c.Request.Context(), sessionID, strings.TrimSpace(req.ChangeType), reviewer)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	response.RespondOK(c, gin.H{"approved_ids": ids})
}

// actor prefers the authenticated reviewer over the one named in the body.
func actor(c *gin.Context, fromBody string) (string, bool) {
	if r := ctxutil.Reviewer(c.Request.Context()); r != "" {
		return r, true
	}
	if r := strings.TrimSpace(fromBody); r != "" {
		return r, true
	}
	response.RespondError(c, http.StatusBadRequest, "missing_reviewer", errNoReviewer)
	return "", false
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}
