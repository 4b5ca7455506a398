package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
	"github.com/leasingborsen/listing-reconciler/internal/services"
)

type fakeExtraction struct {
	session *types.ExtractionSession
	summary *types.Summary
	err     error

	gotSeller   uuid.UUID
	gotLimit    int
	gotVehicles []types.ExtractedVehicle
}

func (f *fakeExtraction) CreateSession(_ context.Context, sellerID uuid.UUID, source string) (*types.ExtractionSession, error) {
	f.gotSeller = sellerID
	return f.session, f.err
}

func (f *fakeExtraction) GetSession(context.Context, uuid.UUID) (*types.ExtractionSession, error) {
	return f.session, f.err
}

func (f *fakeExtraction) ListSessions(_ context.Context, sellerID uuid.UUID, limit int) ([]*types.ExtractionSession, error) {
	f.gotSeller, f.gotLimit = sellerID, limit
	if f.err != nil {
		return nil, f.err
	}
	return []*types.ExtractionSession{f.session}, nil
}

func (f *fakeExtraction) StageRecords(_ context.Context, _ uuid.UUID, vehicles []types.ExtractedVehicle) (int, error) {
	f.gotVehicles = vehicles
	return len(vehicles), f.err
}

func (f *fakeExtraction) Classify(context.Context, uuid.UUID) (*types.Summary, error) {
	return f.summary, f.err
}

func (f *fakeExtraction) Summarize(context.Context, uuid.UUID) (*types.Summary, error) {
	return f.summary, f.err
}

type fakeReview struct {
	change *types.Change
	ids    []uuid.UUID
	err    error

	gotFilter   repos.ChangeFilter
	gotReviewer string
	gotType     string
	calls       []string
}

func (f *fakeReview) ListChanges(_ context.Context, _ uuid.UUID, flt repos.ChangeFilter) ([]*types.Change, error) {
	f.gotFilter = flt
	if f.err != nil {
		return nil, f.err
	}
	return []*types.Change{f.change}, nil
}

func (f *fakeReview) GetChange(context.Context, uuid.UUID, uuid.UUID) (*types.Change, error) {
	return f.change, f.err
}

func (f *fakeReview) record(name, reviewer string) (*types.Change, error) {
	f.calls = append(f.calls, name)
	f.gotReviewer = reviewer
	if f.err != nil {
		return nil, f.err
	}
	return f.change, nil
}

func (f *fakeReview) Approve(_ context.Context, _, _ uuid.UUID, reviewer string) (*types.Change, error) {
	return f.record("approve", reviewer)
}

func (f *fakeReview) Reject(_ context.Context, _, _ uuid.UUID, reviewer string) (*types.Change, error) {
	return f.record("reject", reviewer)
}

func (f *fakeReview) Reset(_ context.Context, _, _ uuid.UUID, reviewer string) (*types.Change, error) {
	return f.record("reset", reviewer)
}

func (f *fakeReview) ApproveAllOfType(_ context.Context, _ uuid.UUID, changeType, reviewer string) ([]uuid.UUID, error) {
	f.gotType, f.gotReviewer = changeType, reviewer
	return f.ids, f.err
}

type fakeApply struct {
	result *services.ApplyResult
	err    error

	gotIDs []uuid.UUID
	gotBy  string
}

func (f *fakeApply) Apply(_ context.Context, _ uuid.UUID, ids []uuid.UUID, appliedBy string) (*services.ApplyResult, error) {
	f.gotIDs, f.gotBy = ids, appliedBy
	return f.result, f.err
}

type route struct {
	method, path string
	h            gin.HandlerFunc
}

func serve(t *testing.T, rt route, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Handle(rt.method, rt.path, rt.h)

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status: want=%d got=%d body=%s", status, rec.Code, rec.Body.String())
	}
	var eb errorBody
	decode(t, rec, &eb)
	if eb.Error.Code != code {
		t.Fatalf("code: want=%s got=%s", code, eb.Error.Code)
	}
}

func testLog() *logger.Logger { return logger.Nop() }
