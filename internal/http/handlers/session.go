package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/http/response"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
	"github.com/leasingborsen/listing-reconciler/internal/services"
)

type SessionHandler struct {
	log        *logger.Logger
	extraction services.ExtractionService
}

func NewSessionHandler(log *logger.Logger, extraction services.ExtractionService) *SessionHandler {
	return &SessionHandler{log: log.With("handler", "SessionHandler"), extraction: extraction}
}

type createSessionRequest struct {
	SellerID uuid.UUID `json:"seller_id"`
	Source   string    `json:"source"`
}

// POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sess, err := h.extraction.CreateSession(c.Request.Context(), req.SellerID, req.Source)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"session": sess})
}

// GET /api/sessions?seller_id=&limit=
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sellerID, err := uuid.Parse(strings.TrimSpace(c.Query("seller_id")))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_seller_id", err)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	out, err := h.extraction.ListSessions(c.Request.Context(), sellerID, limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": out})
}

// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	sess, err := h.extraction.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

type stageRecordsRequest struct {
	Vehicles []types.ExtractedVehicle `json:"vehicles"`
}

// POST /api/sessions/:id/records
func (h *SessionHandler) StageRecords(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	var req stageRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	n, err := h.extraction.StageRecords(c.Request.Context(), sessionID, req.Vehicles)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"staged": n})
}

// POST /api/sessions/:id/classify
func (h *SessionHandler) Classify(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	sum, err := h.extraction.Classify(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"summary": sum})
}

// GET /api/sessions/:id/summary
func (h *SessionHandler) Summary(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	sum, err := h.extraction.Summarize(c.Request.Context(), sessionID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"summary": sum})
}

func sessionParam(c *gin.Context) (uuid.UUID, bool) {
	return uuidParam(c, "id", "invalid_session_id")
}

func uuidParam(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}
