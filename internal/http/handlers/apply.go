package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/http/response"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
	"github.com/leasingborsen/listing-reconciler/internal/services"
)

type ApplyHandler struct {
	log   *logger.Logger
	apply services.ApplyService
}

func NewApplyHandler(log *logger.Logger, apply services.ApplyService) *ApplyHandler {
	return &ApplyHandler{log: log.With("handler", "ApplyHandler"), apply: apply}
}

type applyRequest struct {
	ChangeIDs []uuid.UUID `json:"change_ids"`
	AppliedBy string      `json:"applied_by"`
}

// POST /api/sessions/:id/apply
// Per-change failures are part of a 200 result; only request-level problems are errors.
func (h *ApplyHandler) Apply(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	appliedBy, ok := actor(c, req.AppliedBy)
	if !ok {
		return
	}
	res, err := h.apply.Apply(c.Request.Context(), sessionID, req.ChangeIDs, appliedBy)
	if err != nil && res == nil {
		response.RespondErr(c, err)
		return
	}
	if err != nil {
		// changes were committed; the result carries session_marked=false and a warning
		h.log.Error("apply finished with error", "session_id", sessionID, "error", err)
	}
	response.RespondOK(c, gin.H{"result": res})
}
