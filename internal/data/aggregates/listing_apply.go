package aggregates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/reconcile"
)

type ListingApplyAggregateDeps struct {
	Base BaseDeps

	Sessions   repos.SessionRepo
	Changes    repos.ChangeRepo
	Listings   repos.ListingRepo
	Offers     repos.OfferRepo
	References repos.ReferenceRepo
}

type listingApplyAggregate struct {
	deps ListingApplyAggregateDeps
}

func NewListingApplyAggregate(deps ListingApplyAggregateDeps) domainagg.ListingApplyAggregate {
	deps.Base = deps.Base.scopedTo(domainagg.ListingApplyAggregateContract)
	return &listingApplyAggregate{deps: deps}
}

func (a *listingApplyAggregate) Contract() domainagg.Contract {
	return domainagg.ListingApplyAggregateContract
}

func (a *listingApplyAggregate) configured() bool {
	d := a.deps
	return d.Sessions != nil && d.Changes != nil && d.Listings != nil && d.Offers != nil && d.References != nil
}

func (a *listingApplyAggregate) ApplyChange(ctx context.Context, in domainagg.ApplyChangeInput) (domainagg.ApplyChangeResult, error) {
	const op = "Listings.ListingApply.ApplyChange"
	var out domainagg.ApplyChangeResult
	if in.SessionID == uuid.Nil || in.ChangeID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id or change_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "listing apply aggregate repos not configured", nil)
	}
	appliedAt := nowOr(in.AppliedAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		sess, err := a.deps.Sessions.GetByID(dbc, in.SessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "session not found: "+in.SessionID.String(), nil)
		}
		ch, err := a.deps.Changes.GetByIDForUpdate(dbc, in.SessionID, in.ChangeID)
		if err != nil {
			return err
		}
		if ch == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "change not found: "+in.ChangeID.String(), nil)
		}
		if ch.ChangeStatus != types.ChangeStatusApproved {
			return domainagg.NewError(domainagg.CodeConflict, op,
				fmt.Sprintf("change %s is %s, only approved changes can be applied", ch.ID, ch.ChangeStatus), nil)
		}

		var res domainagg.ApplyChangeResult
		switch ch.ChangeType {
		case types.ChangeTypeCreate:
			res, err = a.applyCreate(dbc, op, sess, ch)
		case types.ChangeTypeUpdate:
			res, err = a.applyUpdate(dbc, op, sess, ch)
		case types.ChangeTypeDelete:
			res, err = a.applyDelete(dbc, op, sess, ch)
		default:
			err = InvariantError(fmt.Sprintf("%s changes cannot be applied", ch.ChangeType))
		}
		if err != nil {
			return err
		}

		ok, err := a.deps.Base.CASGuard.UpdateByStatusColumn(dbc, "extraction_change", "change_status", ch.ID,
			[]string{types.ChangeStatusApproved},
			map[string]any{
				"change_status": types.ChangeStatusApplied,
				"applied_at":    appliedAt,
				"applied_by":    reviewerOrNil(in.AppliedBy),
				"updated_at":    appliedAt,
			})
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.ConcurrentModification(op, "change "+ch.ID.String(), types.ChangeStatusApproved)
		}
		res.ChangeID = ch.ID
		res.ChangeType = ch.ChangeType
		res.AppliedAt = appliedAt
		out = res
		return nil
	})
	return out, err
}

func (a *listingApplyAggregate) applyCreate(dbc dbctx.Context, op string, sess *types.ExtractionSession, ch *types.Change) (domainagg.ApplyChangeResult, error) {
	var out domainagg.ApplyChangeResult
	v, err := snapshotOf(ch)
	if err != nil {
		return out, err
	}
	refs, err := a.resolve(dbc, op, v)
	if err != nil {
		return out, err
	}

	l := &types.Listing{
		SellerID:     sess.SellerID,
		MakeID:       refs.makeID,
		ModelID:      refs.modelID,
		Make:         refs.makeName,
		Model:        refs.modelName,
		Variant:      strings.TrimSpace(v.Variant),
		Horsepower:   v.Horsepower,
		MonthlyPrice: v.EffectiveMonthlyPrice(),
	}
	refs.applyOptional(l)
	if err := a.deps.Listings.Create(dbc, l); err != nil {
		return out, err
	}
	n, err := a.writeOffers(dbc, l.ID, v.Offers)
	if err != nil {
		return out, err
	}
	if err := a.verify(dbc, op, l.ID, v); err != nil {
		return out, err
	}
	out.ListingID = l.ID
	out.OfferCount = n
	return out, nil
}

func (a *listingApplyAggregate) applyUpdate(dbc dbctx.Context, op string, sess *types.ExtractionSession, ch *types.Change) (domainagg.ApplyChangeResult, error) {
	var out domainagg.ApplyChangeResult
	if ch.ExistingListingID == nil || *ch.ExistingListingID == uuid.Nil {
		return out, InvariantError("update change has no existing listing")
	}
	v, err := snapshotOf(ch)
	if err != nil {
		return out, err
	}
	current, err := a.deps.Listings.GetByIDForUpdate(dbc, *ch.ExistingListingID)
	if err != nil {
		return out, err
	}
	if current == nil {
		return out, domainagg.NewError(domainagg.CodeNotFound, op, "listing not found: "+ch.ExistingListingID.String(), nil)
	}
	if current.SellerID != sess.SellerID {
		return out, InvariantError("listing " + current.ID.String() + " belongs to another seller")
	}
	refs, err := a.resolve(dbc, op, v)
	if err != nil {
		return out, err
	}

	// Unreported optional fields keep their stored value.
	updates := map[string]any{
		"variant":       strings.TrimSpace(v.Variant),
		"monthly_price": v.EffectiveMonthlyPrice(),
		"updated_at":    time.Now().UTC(),
	}
	if v.Horsepower > 0 {
		updates["horsepower"] = v.Horsepower
	}
	if refs.transmissionID != nil {
		updates["transmission_id"] = *refs.transmissionID
		updates["transmission"] = refs.transmission
	}
	if refs.fuelTypeID != nil {
		updates["fuel_type_id"] = *refs.fuelTypeID
		updates["fuel_type"] = refs.fuelType
	}
	if refs.bodyTypeID != nil {
		updates["body_type_id"] = *refs.bodyTypeID
		updates["body_type"] = refs.bodyType
	}
	rows, err := a.deps.Listings.UpdateFields(dbc, current.ID, updates)
	if err != nil {
		return out, err
	}
	if rows != 1 {
		return out, ConflictError(fmt.Sprintf("listing update affected %d rows", rows))
	}
	if _, err := a.deps.Offers.DeleteByListing(dbc, current.ID); err != nil {
		return out, err
	}
	n, err := a.writeOffers(dbc, current.ID, v.Offers)
	if err != nil {
		return out, err
	}
	if err := a.verify(dbc, op, current.ID, v); err != nil {
		return out, err
	}
	out.ListingID = current.ID
	out.OfferCount = n
	return out, nil
}

func (a *listingApplyAggregate) applyDelete(dbc dbctx.Context, op string, sess *types.ExtractionSession, ch *types.Change) (domainagg.ApplyChangeResult, error) {
	var out domainagg.ApplyChangeResult
	if ch.ExistingListingID == nil || *ch.ExistingListingID == uuid.Nil {
		return out, InvariantError("delete change has no existing listing")
	}
	id := *ch.ExistingListingID
	current, err := a.deps.Listings.GetByIDForUpdate(dbc, id)
	if err != nil {
		return out, err
	}
	if current == nil {
		return out, domainagg.NewError(domainagg.CodeNotFound, op, "listing not found: "+id.String(), nil)
	}
	if current.SellerID != sess.SellerID {
		return out, InvariantError("listing " + id.String() + " belongs to another seller")
	}

	removed, err := a.deps.Offers.DeleteByListing(dbc, id)
	if err != nil {
		return out, err
	}
	left, err := a.deps.Offers.CountByListing(dbc, id)
	if err != nil {
		return out, err
	}
	if left != 0 {
		return out, domainagg.NewError(domainagg.CodeReferentialIntegrity, op,
			fmt.Sprintf("%d offers still reference listing %s", left, id), nil)
	}
	rows, err := a.deps.Listings.Delete(dbc, id)
	if err != nil {
		return out, err
	}
	if rows != 1 {
		return out, domainagg.NewError(domainagg.CodeReferentialIntegrity, op,
			fmt.Sprintf("listing delete affected %d rows", rows), nil)
	}
	out.ListingID = id
	out.OfferCount = int(removed)
	return out, nil
}

func (a *listingApplyAggregate) writeOffers(dbc dbctx.Context, listingID uuid.UUID, offers []types.ExtractedOffer) (int, error) {
	rows := make([]*types.Offer, 0, len(offers))
	for _, o := range offers {
		rows = append(rows, &types.Offer{
			ListingID:      listingID,
			MonthlyPrice:   o.MonthlyPrice,
			PeriodMonths:   o.PeriodMonths,
			MileagePerYear: o.MileagePerYear,
			FirstPayment:   o.FirstPayment,
			TotalPrice:     o.TotalPrice,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := a.deps.Offers.CreateMany(dbc, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// verify re-reads the listing and rolls the write back when it disagrees with the snapshot.
func (a *listingApplyAggregate) verify(dbc dbctx.Context, op string, id uuid.UUID, v types.ExtractedVehicle) error {
	stored, err := a.deps.Listings.GetByID(dbc, id)
	if err != nil {
		return err
	}
	if stored == nil {
		return domainagg.NewError(domainagg.CodeInvariantViolation, op, "listing vanished after write: "+id.String(), nil)
	}
	diff := reconcile.Diff(v, stored)
	if diff.Empty() {
		return nil
	}
	fields := diff.Fields()
	sort.Strings(fields)
	return domainagg.NewError(domainagg.CodeInvariantViolation, op,
		"stored listing differs from snapshot in "+strings.Join(fields, ", "), nil)
}

type resolvedRefs struct {
	makeID, modelID     uuid.UUID
	makeName, modelName string

	transmissionID *uuid.UUID
	transmission   string
	fuelTypeID     *uuid.UUID
	fuelType       string
	bodyTypeID     *uuid.UUID
	bodyType       string
}

func (r resolvedRefs) applyOptional(l *types.Listing) {
	if r.transmissionID != nil {
		l.TransmissionID, l.Transmission = r.transmissionID, r.transmission
	}
	if r.fuelTypeID != nil {
		l.FuelTypeID, l.FuelType = r.fuelTypeID, r.fuelType
	}
	if r.bodyTypeID != nil {
		l.BodyTypeID, l.BodyType = r.bodyTypeID, r.bodyType
	}
}

// resolve maps every reported name to its reference row. Names are never created here.
func (a *listingApplyAggregate) resolve(dbc dbctx.Context, op string, v types.ExtractedVehicle) (resolvedRefs, error) {
	var out resolvedRefs
	refs := a.deps.References

	mk, err := refs.FindMake(dbc, v.Make)
	if err != nil {
		return out, err
	}
	if mk == nil {
		return out, domainagg.ReferenceResolution(op, "make", v.Make)
	}
	md, err := refs.FindModel(dbc, mk.ID, v.Model)
	if err != nil {
		return out, err
	}
	if md == nil {
		return out, domainagg.ReferenceResolution(op, "model", v.Make+" "+v.Model)
	}
	out.makeID, out.makeName = mk.ID, mk.Name
	out.modelID, out.modelName = md.ID, md.Name

	if name := strings.TrimSpace(v.Transmission); name != "" {
		row, err := refs.FindTransmission(dbc, name)
		if err != nil {
			return out, err
		}
		if row == nil {
			return out, domainagg.ReferenceResolution(op, "transmission", name)
		}
		out.transmissionID, out.transmission = &row.ID, row.Name
	}
	if name := strings.TrimSpace(v.FuelType); name != "" {
		row, err := refs.FindFuelType(dbc, name)
		if err != nil {
			return out, err
		}
		if row == nil {
			return out, domainagg.ReferenceResolution(op, "fuel type", name)
		}
		out.fuelTypeID, out.fuelType = &row.ID, row.Name
	}
	if name := strings.TrimSpace(v.BodyType); name != "" {
		row, err := refs.FindBodyType(dbc, name)
		if err != nil {
			return out, err
		}
		if row == nil {
			return out, domainagg.ReferenceResolution(op, "body type", name)
		}
		out.bodyTypeID, out.bodyType = &row.ID, row.Name
	}
	return out, nil
}

func snapshotOf(ch *types.Change) (types.ExtractedVehicle, error) {
	v, err := ch.Vehicle()
	if err != nil {
		return types.ExtractedVehicle{}, InvariantError(err.Error())
	}
	if v == nil {
		return types.ExtractedVehicle{}, InvariantError(ch.ChangeType + " change has no extracted snapshot")
	}
	return *v, nil
}

func (a *listingApplyAggregate) MarkSessionApplied(ctx context.Context, in domainagg.MarkSessionAppliedInput) (domainagg.MarkSessionAppliedResult, error) {
	const op = "Listings.ListingApply.MarkSessionApplied"
	var out domainagg.MarkSessionAppliedResult
	if in.SessionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	if a.deps.Sessions == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "listing apply aggregate repos not configured", nil)
	}
	at := nowOr(in.AppliedAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		sess, err := a.deps.Sessions.GetByIDForUpdate(dbc, in.SessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "session not found: "+in.SessionID.String(), nil)
		}
		if err := a.deps.Sessions.UpdateFields(dbc, sess.ID, map[string]any{
			"applied_at": at,
			"applied_by": reviewerOrNil(in.AppliedBy),
			"updated_at": at,
		}); err != nil {
			return err
		}
		out = domainagg.MarkSessionAppliedResult{SessionID: sess.ID, AppliedAt: at}
		return nil
	})
	return out, err
}
