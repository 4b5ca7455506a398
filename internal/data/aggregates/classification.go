package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
)

type ClassificationAggregateDeps struct {
	Base BaseDeps

	Sessions repos.SessionRepo
	Records  repos.RecordRepo
	Changes  repos.ChangeRepo
}

type classificationAggregate struct {
	deps ClassificationAggregateDeps
}

func NewClassificationAggregate(deps ClassificationAggregateDeps) domainagg.ClassificationAggregate {
	deps.Base = deps.Base.scopedTo(domainagg.ClassificationAggregateContract)
	return &classificationAggregate{deps: deps}
}

func (a *classificationAggregate) Contract() domainagg.Contract {
	return domainagg.ClassificationAggregateContract
}

func (a *classificationAggregate) configured() bool {
	return a.deps.Sessions != nil && a.deps.Records != nil && a.deps.Changes != nil
}

func (a *classificationAggregate) BeginClassification(ctx context.Context, in domainagg.BeginClassificationInput) (domainagg.BeginClassificationResult, error) {
	const op = "Extraction.Classification.Begin"
	var out domainagg.BeginClassificationResult
	if in.SessionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "classification aggregate repos not configured", nil)
	}
	startedAt := nowOr(in.StartedAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		sess, err := a.lockSession(dbc, op, in.SessionID)
		if err != nil {
			return err
		}
		if err := RequireStatusAllowed(sess.Status, types.SessionStatusPending, types.SessionStatusFailed); err != nil {
			return domainagg.NewError(domainagg.CodeConflict, op,
				fmt.Sprintf("session %s is %s and cannot start classification", sess.ID, sess.Status), err)
		}
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "extraction_session", sess.ID,
			[]string{types.SessionStatusPending, types.SessionStatusFailed},
			map[string]any{
				"status":     types.SessionStatusProcessing,
				"error":      "",
				"updated_at": startedAt,
			})
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.ConcurrentModification(op, "session", sess.Status)
		}
		out = domainagg.BeginClassificationResult{
			SessionID:      sess.ID,
			SellerID:       sess.SellerID,
			PreviousStatus: sess.Status,
			Status:         types.SessionStatusProcessing,
		}
		return nil
	})
	return out, err
}

func (a *classificationAggregate) RecordOutcome(ctx context.Context, in domainagg.RecordOutcomeInput) (domainagg.RecordOutcomeResult, error) {
	const op = "Extraction.Classification.RecordOutcome"
	var out domainagg.RecordOutcomeResult
	if in.SessionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	if in.RecordID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing record_id", nil)
	}
	classifyErr := strings.TrimSpace(in.ClassifyError)
	if (in.Change == nil) == (classifyErr == "") {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "exactly one of change or classify_error is required", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "classification aggregate repos not configured", nil)
	}
	classifiedAt := nowOr(in.ClassifiedAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if _, err := a.requireProcessing(dbc, op, in.SessionID); err != nil {
			return err
		}
		out.RecordID = in.RecordID

		if classifyErr != "" {
			return a.deps.Records.MarkFailed(dbc, in.RecordID, classifyErr)
		}

		row, err := changeFromDraft(in.SessionID, *in.Change, classifiedAt)
		if err != nil {
			return err
		}
		inserted, err := a.deps.Changes.CreateIfAbsent(dbc, row)
		if err != nil {
			return err
		}
		out.Inserted = inserted
		if inserted {
			id := row.ID
			out.ChangeID = &id
		}
		ok, err := a.deps.Records.MarkClassified(dbc, in.RecordID, classifiedAt)
		if err != nil {
			return err
		}
		return RequireCASSuccess(ok, "record "+in.RecordID.String()+" already classified")
	})
	return out, err
}

func (a *classificationAggregate) CompleteClassification(ctx context.Context, in domainagg.CompleteClassificationInput) (domainagg.CompleteClassificationResult, error) {
	const op = "Extraction.Classification.Complete"
	var out domainagg.CompleteClassificationResult
	if in.SessionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	if in.Failed && len(in.Deletes) > 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "a failed classification cannot emit delete changes", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "classification aggregate repos not configured", nil)
	}
	completedAt := nowOr(in.CompletedAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		sess, err := a.requireProcessing(dbc, op, in.SessionID)
		if err != nil {
			return err
		}

		inserted := 0
		for _, d := range in.Deletes {
			if d.ChangeType != types.ChangeTypeDelete {
				return InvariantError(fmt.Sprintf("delete batch contains a %q change", d.ChangeType))
			}
			row, err := changeFromDraft(sess.ID, d, completedAt)
			if err != nil {
				return err
			}
			ok, err := a.deps.Changes.CreateIfAbsent(dbc, row)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}

		updates := map[string]any{"updated_at": completedAt}
		status := types.SessionStatusCompleted
		if in.Failed {
			status = types.SessionStatusFailed
			updates["error"] = strings.TrimSpace(in.Error)
		} else {
			updates["error"] = ""
			updates["classified_at"] = completedAt
		}
		updates["status"] = status

		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "extraction_session", sess.ID,
			[]string{types.SessionStatusProcessing}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.ConcurrentModification(op, "session", types.SessionStatusProcessing)
		}
		out = domainagg.CompleteClassificationResult{
			SessionID:       sess.ID,
			Status:          status,
			DeletesInserted: inserted,
			CompletedAt:     completedAt,
		}
		return nil
	})
	return out, err
}

func (a *classificationAggregate) lockSession(dbc dbctx.Context, op string, id uuid.UUID) (*types.ExtractionSession, error) {
	sess, err := a.deps.Sessions.GetByIDForUpdate(dbc, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "session not found: "+id.String(), nil)
	}
	return sess, nil
}

func (a *classificationAggregate) requireProcessing(dbc dbctx.Context, op string, id uuid.UUID) (*types.ExtractionSession, error) {
	sess, err := a.lockSession(dbc, op, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != types.SessionStatusProcessing {
		return nil, domainagg.NewError(domainagg.CodeConflict, op,
			fmt.Sprintf("session %s is %s, not processing", sess.ID, sess.Status), nil)
	}
	return sess, nil
}

func changeFromDraft(sessionID uuid.UUID, d domainagg.ChangeDraft, at time.Time) (*types.Change, error) {
	if strings.TrimSpace(d.DedupeKey) == "" {
		return nil, ValidationError("change draft is missing a dedupe key")
	}
	if strings.TrimSpace(d.ChangeType) == "" || strings.TrimSpace(d.MatchMethod) == "" {
		return nil, ValidationError("change draft is missing change_type or match_method")
	}
	if d.ChangeType == types.ChangeTypeUpdate || d.ChangeType == types.ChangeTypeDelete || d.ChangeType == types.ChangeTypeUnchanged {
		if d.ExistingListingID == nil || *d.ExistingListingID == uuid.Nil {
			return nil, InvariantError(d.ChangeType + " change requires an existing listing")
		}
	}
	c := &types.Change{
		SessionID:         sessionID,
		DedupeKey:         d.DedupeKey,
		ChangeType:        d.ChangeType,
		ChangeStatus:      types.ChangeStatusPending,
		ExistingListingID: d.ExistingListingID,
		MatchMethod:       d.MatchMethod,
		MatchConfidence:   d.MatchConfidence,
		CreatedAt:         at,
		UpdatedAt:         at,
	}
	if len(d.ExtractedData) > 0 {
		c.ExtractedData = datatypes.JSON(d.ExtractedData)
	}
	if len(d.FieldDiff) > 0 {
		c.FieldDiff = datatypes.JSON(d.FieldDiff)
	}
	return c, nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
