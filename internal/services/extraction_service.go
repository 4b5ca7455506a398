package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/observability"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
	"github.com/leasingborsen/listing-reconciler/internal/reconcile"
)

// ExtractionService owns the session lifecycle: staging records, classifying them
// into changes and reporting the summary.
type ExtractionService interface {
	CreateSession(ctx context.Context, sellerID uuid.UUID, source string) (*types.ExtractionSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*types.ExtractionSession, error)
	ListSessions(ctx context.Context, sellerID uuid.UUID, limit int) ([]*types.ExtractionSession, error)
	StageRecords(ctx context.Context, sessionID uuid.UUID, vehicles []types.ExtractedVehicle) (int, error)
	Classify(ctx context.Context, sessionID uuid.UUID) (*types.Summary, error)
	Summarize(ctx context.Context, sessionID uuid.UUID) (*types.Summary, error)
}

type extractionService struct {
	db         *gorm.DB
	log        *logger.Logger
	metrics    *observability.Metrics
	sessions   repos.SessionRepo
	records    repos.RecordRepo
	changes    repos.ChangeRepo
	listings   repos.ListingRepo
	references repos.ReferenceRepo
	classify   domainagg.ClassificationAggregate
	matchCfg   reconcile.MatchConfig
}

func NewExtractionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
	sessions repos.SessionRepo,
	records repos.RecordRepo,
	changes repos.ChangeRepo,
	listings repos.ListingRepo,
	references repos.ReferenceRepo,
	classify domainagg.ClassificationAggregate,
	matchCfg reconcile.MatchConfig,
) ExtractionService {
	return &extractionService{
		db:         db,
		log:        baseLog.With("service", "ExtractionService"),
		metrics:    metrics,
		sessions:   sessions,
		records:    records,
		changes:    changes,
		listings:   listings,
		references: references,
		classify:   classify,
		matchCfg:   matchCfg,
	}
}

func (s *extractionService) CreateSession(ctx context.Context, sellerID uuid.UUID, source string) (*types.ExtractionSession, error) {
	const op = "ExtractionService.CreateSession"
	if sellerID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing seller_id", nil)
	}
	sess := &types.ExtractionSession{
		SellerID: sellerID,
		Status:   types.SessionStatusPending,
		Source:   strings.TrimSpace(source),
	}
	if err := s.sessions.Create(dbctx.Context{Ctx: ctx}, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("extraction session created", "session_id", sess.ID, "seller_id", sellerID, "source", sess.Source)
	return sess, nil
}

func (s *extractionService) GetSession(ctx context.Context, id uuid.UUID) (*types.ExtractionSession, error) {
	return s.requireSession(dbctx.Context{Ctx: ctx}, "ExtractionService.GetSession", id)
}

func (s *extractionService) ListSessions(ctx context.Context, sellerID uuid.UUID, limit int) ([]*types.ExtractionSession, error) {
	if sellerID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, "ExtractionService.ListSessions", "missing seller_id", nil)
	}
	out, err := s.sessions.ListBySeller(dbctx.Context{Ctx: ctx}, sellerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// StageRecords appends vehicles to the session. Records are validated during
// classification so one malformed vehicle never blocks the rest of the batch.
// A vehicle whose fingerprint is already staged is refused: the second copy
// could not match the listing the first one claims and would become a create.
func (s *extractionService) StageRecords(ctx context.Context, sessionID uuid.UUID, vehicles []types.ExtractedVehicle) (int, error) {
	const op = "ExtractionService.StageRecords"
	if len(vehicles) == 0 {
		return 0, domainagg.NewError(domainagg.CodeValidation, op, "no vehicles to stage", nil)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		sess, err := s.sessions.GetByIDForUpdate(dbc, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "session not found: "+sessionID.String(), nil)
		}
		if sess.Status == types.SessionStatusCompleted || sess.Status == types.SessionStatusProcessing {
			return domainagg.NewError(domainagg.CodeConflict, op,
				fmt.Sprintf("session %s is %s and no longer accepts records", sess.ID, sess.Status), nil)
		}
		if err := s.rejectDuplicates(dbc, op, sess.ID, vehicles); err != nil {
			return err
		}
		seq, err := s.records.MaxSeq(dbc, sess.ID)
		if err != nil {
			return err
		}
		rows := make([]*types.ExtractedRecord, 0, len(vehicles))
		for _, v := range vehicles {
			raw, err := json.Marshal(v)
			if err != nil {
				return domainagg.NewError(domainagg.CodeValidation, op, "encode vehicle", err)
			}
			seq++
			rows = append(rows, &types.ExtractedRecord{SessionID: sess.ID, Seq: seq, Payload: datatypes.JSON(raw)})
		}
		if err := s.records.Create(dbc, rows); err != nil {
			return err
		}
		return s.sessions.IncrementTotalExtracted(dbc, sess.ID, len(rows))
	})
	if err != nil {
		return 0, wrapOp(op, err)
	}
	return len(vehicles), nil
}

// rejectDuplicates refuses the batch when two vehicles share a fingerprint, within
// the batch or with a record staged earlier.
func (s *extractionService) rejectDuplicates(dbc dbctx.Context, op string, sessionID uuid.UUID, vehicles []types.ExtractedVehicle) error {
	staged, err := s.records.ListBySession(dbc, sessionID)
	if err != nil {
		return err
	}
	seen := make(map[string]string, len(staged)+len(vehicles))
	for _, rec := range staged {
		var v types.ExtractedVehicle
		if json.Unmarshal(rec.Payload, &v) == nil {
			seen[v.Fingerprint()] = fmt.Sprintf("staged record seq %d", rec.Seq)
		}
	}
	for i, v := range vehicles {
		fp := v.Fingerprint()
		if prev, dup := seen[fp]; dup {
			return domainagg.NewError(domainagg.CodeValidation, op,
				fmt.Sprintf("vehicle %d (%s %s) duplicates %s", i, v.Make, v.VariantKey(), prev), nil)
		}
		seen[fp] = fmt.Sprintf("vehicle %d in this batch", i)
	}
	return nil
}

// Classify runs the matcher and classifier over every staged record not yet
// classified. Deletes are only proposed once every record is classified; until
// then the session is failed and a later run picks up the remaining records.
func (s *extractionService) Classify(ctx context.Context, sessionID uuid.UUID) (*types.Summary, error) {
	const op = "ExtractionService.Classify"
	start := time.Now()
	dbc := dbctx.Context{Ctx: ctx}
	sess, err := s.requireSession(dbc, op, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == types.SessionStatusCompleted {
		return s.Summarize(ctx, sessionID)
	}
	// Without records every listing would look unmatched and be proposed for deletion.
	staged, _, err := s.records.CountBySession(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count staged records: %w", err)
	}
	if staged == 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "session has no staged records to classify", nil)
	}

	begun, err := s.classify.BeginClassification(ctx, domainagg.BeginClassificationInput{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	log := s.log.With("session_id", sessionID, "seller_id", begun.SellerID)

	pass, err := s.preparePass(dbc, sessionID, begun.SellerID)
	if err != nil {
		s.abort(ctx, sessionID, "load reconciliation inputs: "+err.Error())
		return nil, fmt.Errorf("prepare classification: %w", err)
	}
	records, err := s.records.ListUnclassified(dbc, sessionID)
	if err != nil {
		s.abort(ctx, sessionID, "list staged records: "+err.Error())
		return nil, fmt.Errorf("list staged records: %w", err)
	}

	for _, rec := range records {
		if err := s.classifyRecord(ctx, pass, rec); err != nil {
			s.abort(ctx, sessionID, "store classification outcome: "+err.Error())
			return nil, err
		}
	}

	total, failed, err := s.records.CountBySession(dbc, sessionID)
	if err != nil {
		s.abort(ctx, sessionID, "count staged records: "+err.Error())
		return nil, fmt.Errorf("count staged records: %w", err)
	}
	remaining, err := s.records.ListUnclassified(dbc, sessionID)
	if err != nil {
		s.abort(ctx, sessionID, "list staged records: "+err.Error())
		return nil, fmt.Errorf("list staged records: %w", err)
	}

	in := domainagg.CompleteClassificationInput{SessionID: sessionID}
	if failed > 0 || len(remaining) > 0 {
		in.Failed = true
		in.Error = fmt.Sprintf("%d of %d records failed classification", len(remaining), total)
	} else {
		for _, l := range pass.Unclaimed() {
			in.Deletes = append(in.Deletes, reconcile.DeleteDraft(l))
		}
	}
	done, err := s.classify.CompleteClassification(context.WithoutCancel(ctx), in)
	if err != nil {
		return nil, err
	}
	for range in.Deletes {
		s.metrics.IncChangeClassified(types.ChangeTypeDelete, types.MatchMethodUnmatched)
	}
	log.Info("classification finished",
		"status", done.Status,
		"records", len(records),
		"failed", len(remaining),
		"deletes", done.DeletesInserted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return s.Summarize(ctx, sessionID)
}

func (s *extractionService) preparePass(dbc dbctx.Context, sessionID, sellerID uuid.UUID) (*reconcile.Pass, error) {
	catalog, err := s.references.LoadCatalog(dbc)
	if err != nil {
		return nil, err
	}
	existing, err := s.listings.ListBySeller(dbc, sellerID)
	if err != nil {
		return nil, err
	}
	claimed, err := s.changes.ClaimedListingIDs(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	return reconcile.NewPass(reconcile.NewMatcher(s.matchCfg, catalog), existing, claimed), nil
}

// classifyRecord stores one record's outcome. Only storage failures are returned;
// a record that cannot be classified is recorded as failed and the batch continues.
func (s *extractionService) classifyRecord(ctx context.Context, pass *reconcile.Pass, rec *types.ExtractedRecord) error {
	in := domainagg.RecordOutcomeInput{SessionID: rec.SessionID, RecordID: rec.ID}

	var v types.ExtractedVehicle
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		in.ClassifyError = "decode record payload: " + err.Error()
	} else if c, err := pass.Classify(v); err != nil {
		in.ClassifyError = domainagg.MessageOf(err)
	} else if draft, err := reconcile.RecordDraft(rec.ID, v, c); err != nil {
		in.ClassifyError = err.Error()
	} else {
		in.Change = &draft
	}

	if _, err := s.classify.RecordOutcome(ctx, in); err != nil {
		return err
	}
	if in.Change != nil {
		s.metrics.IncChangeClassified(in.Change.ChangeType, in.Change.MatchMethod)
	} else {
		s.metrics.IncRecordFailed(failureReason(in.ClassifyError))
		s.log.Warn("record failed classification", "session_id", rec.SessionID, "seq", rec.Seq, "error", in.ClassifyError)
	}
	return nil
}

func (s *extractionService) abort(ctx context.Context, sessionID uuid.UUID, reason string) {
	_, err := s.classify.CompleteClassification(context.WithoutCancel(ctx), domainagg.CompleteClassificationInput{
		SessionID: sessionID,
		Failed:    true,
		Error:     reason,
	})
	if err != nil {
		s.log.Error("failed to mark session failed", "session_id", sessionID, "error", err)
	}
}

// Summarize derives counts from the change store and staged records at any session status.
func (s *extractionService) Summarize(ctx context.Context, sessionID uuid.UUID) (*types.Summary, error) {
	const op = "ExtractionService.Summarize"
	dbc := dbctx.Context{Ctx: ctx}
	sess, err := s.requireSession(dbc, op, sessionID)
	if err != nil {
		return nil, err
	}
	counts, err := s.changes.CountByTypeStatus(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count changes: %w", err)
	}
	failed, err := s.records.ListFailed(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list failed records: %w", err)
	}
	out := BuildSummary(sess, counts, len(failed))
	for _, rec := range failed {
		out.RecordErrors = append(out.RecordErrors, types.RecordError{RecordID: rec.ID, Seq: rec.Seq, Error: rec.ClassifyError})
	}
	return out, nil
}

// BuildSummary folds change counts into a Summary and picks the outcome that tells
// "nothing differs" apart from "classification failed".
func BuildSummary(sess *types.ExtractionSession, counts []repos.TypeStatusCount, failedRecords int) *types.Summary {
	out := &types.Summary{
		SessionID:      sess.ID,
		Status:         sess.Status,
		TotalExtracted: sess.TotalExtracted,
		TotalFailed:    failedRecords,
	}
	for _, c := range counts {
		n := int(c.Count)
		switch c.ChangeType {
		case types.ChangeTypeCreate:
			out.TotalNew += n
		case types.ChangeTypeUpdate:
			out.TotalUpdated += n
			out.TotalMatched += n
		case types.ChangeTypeUnchanged:
			out.TotalUnchanged += n
			out.TotalMatched += n
		case types.ChangeTypeMissingModel:
			out.TotalMissingModel += n
		case types.ChangeTypeDelete:
			out.TotalDeleted += n
		}
		if c.ChangeType != types.ChangeTypeDelete {
			out.TotalClassified += n
		}
		if c.ChangeStatus == types.ChangeStatusApplied {
			out.TotalApplied += n
		}
	}

	actionable := out.TotalNew + out.TotalUpdated + out.TotalDeleted
	switch sess.Status {
	case types.SessionStatusFailed:
		if out.TotalClassified > 0 {
			out.Outcome = types.OutcomePartiallyFailed
		} else {
			out.Outcome = types.OutcomeClassificationFailed
		}
	case types.SessionStatusCompleted:
		if actionable == 0 && out.TotalMissingModel == 0 {
			out.Outcome = types.OutcomeNoChanges
		} else {
			out.Outcome = types.OutcomeChangesPending
		}
	default:
		out.Outcome = types.OutcomeNotClassified
	}
	return out
}

func (s *extractionService) requireSession(dbc dbctx.Context, op string, id uuid.UUID) (*types.ExtractionSession, error) {
	if id == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	sess, err := s.sessions.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "session not found: "+id.String(), nil)
	}
	return sess, nil
}

func failureReason(msg string) string {
	switch {
	case strings.HasPrefix(msg, "decode record payload"):
		return "decode"
	case strings.Contains(msg, types.ErrInvalidVehicle.Error()):
		return "validation"
	default:
		return "other"
	}
}

func wrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
