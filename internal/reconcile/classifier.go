package reconcile

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
)

// Classification is the typed outcome for one extracted vehicle.
type Classification struct {
	ChangeType string
	Match      MatchResult
	Diff       types.FieldDiff
	Listing    *types.Listing
}

// Classify turns a match into a change type. existing must contain the matched listing.
func Classify(v types.ExtractedVehicle, match MatchResult, existing []*types.Listing) (Classification, error) {
	out := Classification{Match: match}
	switch {
	case match.Method == types.MatchMethodModelNotFound:
		out.ChangeType = types.ChangeTypeMissingModel
		return out, nil
	case !match.Matched():
		out.ChangeType = types.ChangeTypeCreate
		return out, nil
	}
	for _, l := range existing {
		if l != nil && l.ID == *match.ListingID {
			out.Listing = l
			break
		}
	}
	if out.Listing == nil {
		return out, domainagg.NewError(domainagg.CodeInvariantViolation, "reconcile.classify",
			fmt.Sprintf("matched listing %s is not among the seller's listings", *match.ListingID), nil)
	}
	out.Diff = Diff(v, out.Listing)
	if out.Diff.Empty() {
		out.ChangeType = types.ChangeTypeUnchanged
	} else {
		out.ChangeType = types.ChangeTypeUpdate
	}
	return out, nil
}

// Pass classifies the records of one session against a seller's listings.
// A listing is claimed by at most one record; unclaimed listings become deletes.
type Pass struct {
	matcher  *Matcher
	listings []*types.Listing
	claimed  map[uuid.UUID]struct{}
}

// NewPass starts with listings already claimed by earlier classification runs.
func NewPass(m *Matcher, existing []*types.Listing, claimed []uuid.UUID) *Pass {
	p := &Pass{
		matcher:  m,
		listings: existing,
		claimed:  make(map[uuid.UUID]struct{}, len(claimed)),
	}
	for _, id := range claimed {
		p.claimed[id] = struct{}{}
	}
	return p
}

// Classify validates, matches against unclaimed listings and claims the match.
// Errors are per record; the pass stays usable.
func (p *Pass) Classify(v types.ExtractedVehicle) (Classification, error) {
	if err := v.Validate(); err != nil {
		return Classification{}, domainagg.NewError(domainagg.CodeValidation, "reconcile.classify", err.Error(), err)
	}
	match := p.matcher.Match(v, p.available())
	c, err := Classify(v, match, p.listings)
	if err != nil {
		return c, err
	}
	if c.Listing != nil {
		p.claimed[c.Listing.ID] = struct{}{}
	}
	return c, nil
}

func (p *Pass) available() []*types.Listing {
	out := make([]*types.Listing, 0, len(p.listings))
	for _, l := range p.listings {
		if l == nil {
			continue
		}
		if _, taken := p.claimed[l.ID]; !taken {
			out = append(out, l)
		}
	}
	return out
}

// Unclaimed returns the listings no record matched, ordered by ID.
func (p *Pass) Unclaimed() []*types.Listing {
	out := p.available()
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}
