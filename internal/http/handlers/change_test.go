package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/platform/ctxutil"
)

func changeTarget(sessionID, changeID uuid.UUID, action string) string {
	return "/sessions/" + sessionID.String() + "/changes/" + changeID.String() + "/" + action
}

func TestChangeHandler_Transitions(t *testing.T) {
	ch := &types.Change{ID: uuid.New(), SessionID: uuid.New(), ChangeStatus: types.ChangeStatusApproved}
	fake := &fakeReview{change: ch}
	h := NewChangeHandler(testLog(), fake)

	for _, tc := range []struct {
		action string
		h      gin.HandlerFunc
	}{
		{"approve", h.Approve},
		{"reject", h.Reject},
		{"reset", h.Reset},
	} {
		rt := route{http.MethodPost, "/sessions/:id/changes/:changeId/" + tc.action, tc.h}
		rec := serve(t, rt, http.MethodPost, changeTarget(ch.SessionID, ch.ID, tc.action), map[string]string{"reviewer": "anna"})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", tc.action, rec.Code, rec.Body.String())
		}
		if fake.gotReviewer != "anna" {
			t.Fatalf("%s: reviewer want=anna got=%s", tc.action, fake.gotReviewer)
		}
	}
	if len(fake.calls) != 3 || fake.calls[0] != "approve" || fake.calls[2] != "reset" {
		t.Fatalf("calls: %v", fake.calls)
	}
}

func TestChangeHandler_ReviewerRequired(t *testing.T) {
	fake := &fakeReview{change: &types.Change{}}
	h := NewChangeHandler(testLog(), fake)
	rt := route{http.MethodPost, "/sessions/:id/changes/:changeId/approve", h.Approve}
	rec := serve(t, rt, http.MethodPost, changeTarget(uuid.New(), uuid.New(), "approve"), nil)
	wantError(t, rec, http.StatusBadRequest, "missing_reviewer")
	if len(fake.calls) != 0 {
		t.Fatalf("service called without reviewer")
	}
}

func TestChangeHandler_AuthenticatedReviewerWins(t *testing.T) {
	fake := &fakeReview{change: &types.Change{}}
	h := NewChangeHandler(testLog(), fake)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.WithReviewer(context.Background(), "token-user", ""))
	})
	r.POST("/sessions/:id/changes/:changeId/approve", h.Approve)

	req := httptest.NewRequest(http.MethodPost, changeTarget(uuid.New(), uuid.New(), "approve"), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || fake.gotReviewer != "token-user" {
		t.Fatalf("want token reviewer, got status=%d reviewer=%s", rec.Code, fake.gotReviewer)
	}
}

func TestChangeHandler_ConflictAndNotFound(t *testing.T) {
	fake := &fakeReview{err: domainagg.ConcurrentModification("op", "change", "pending")}
	h := NewChangeHandler(testLog(), fake)
	rt := route{http.MethodPost, "/sessions/:id/changes/:changeId/approve", h.Approve}
	rec := serve(t, rt, http.MethodPost, changeTarget(uuid.New(), uuid.New(), "approve"), map[string]string{"reviewer": "anna"})
	wantError(t, rec, http.StatusConflict, "conflict")

	fake.err = domainagg.NewError(domainagg.CodeNotFound, "op", "change not found", nil)
	get := route{http.MethodGet, "/sessions/:id/changes/:changeId", h.GetChange}
	rec = serve(t, get, http.MethodGet, "/sessions/"+uuid.NewString()+"/changes/"+uuid.NewString(), nil)
	wantError(t, rec, http.StatusNotFound, "not_found")
	rec = serve(t, get, http.MethodGet, "/sessions/"+uuid.NewString()+"/changes/nope", nil)
	wantError(t, rec, http.StatusBadRequest, "invalid_change_id")
}

func TestChangeHandler_ListFilters(t *testing.T) {
	fake := &fakeReview{change: &types.Change{ID: uuid.New()}}
	h := NewChangeHandler(testLog(), fake)
	rt := route{http.MethodGet, "/sessions/:id/changes", h.ListChanges}
	rec := serve(t, rt, http.MethodGet, "/sessions/"+uuid.NewString()+"/changes?type=delete&status=pending", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status=%d", rec.Code)
	}
	if fake.gotFilter.ChangeType != types.ChangeTypeDelete || fake.gotFilter.ChangeStatus != types.ChangeStatusPending {
		t.Fatalf("filter: %+v", fake.gotFilter)
	}
}

func TestChangeHandler_ApproveAll(t *testing.T) {
	fake := &fakeReview{}
	h := NewChangeHandler(testLog(), fake)
	rt := route{http.MethodPost, "/sessions/:id/changes/approve-all", h.ApproveAll}
	target := "/sessions/" + uuid.NewString() + "/changes/approve-all"

	rec := serve(t, rt, http.MethodPost, target, map[string]string{"change_type": "create", "reviewer": "anna"})
	if rec.Code != http.StatusOK || fake.gotType != types.ChangeTypeCreate {
		t.Fatalf("approve all: status=%d type=%s", rec.Code, fake.gotType)
	}
	var body struct {
		ApprovedIDs []uuid.UUID `json:"approved_ids"`
	}
	decode(t, rec, &body)
	if body.ApprovedIDs == nil {
		t.Fatalf("approved_ids should be an empty list, not null")
	}

	fake.err = domainagg.NewError(domainagg.CodeValidation, "op", "unchanged cannot be approved", nil)
	wantError(t, serve(t, rt, http.MethodPost, target, map[string]string{"change_type": "unchanged", "reviewer": "anna"}),
		http.StatusBadRequest, "validation")
}
