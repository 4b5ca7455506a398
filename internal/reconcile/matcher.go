package reconcile

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/domain/listings"
)

// MatchConfig tunes fuzzy matching. Weights need not sum to 1; scores are normalized.
type MatchConfig struct {
	Threshold           float64 `yaml:"threshold"`
	HorsepowerTolerance int     `yaml:"horsepower_tolerance"`
	WeightVariant       float64 `yaml:"weight_variant"`
	WeightHorsepower    float64 `yaml:"weight_horsepower"`
	WeightTransmission  float64 `yaml:"weight_transmission"`
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Threshold:           0.7,
		HorsepowerTolerance: 5,
		WeightVariant:       0.6,
		WeightHorsepower:    0.25,
		WeightTransmission:  0.15,
	}
}

func (c MatchConfig) Validate() error {
	var errs []error
	if c.Threshold <= 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold must be in (0,1], got %v", c.Threshold))
	}
	if c.HorsepowerTolerance < 0 {
		errs = append(errs, fmt.Errorf("horsepower tolerance must be >= 0, got %d", c.HorsepowerTolerance))
	}
	if c.WeightVariant < 0 || c.WeightHorsepower < 0 || c.WeightTransmission < 0 {
		errs = append(errs, errors.New("weights must be >= 0"))
	}
	if c.WeightVariant+c.WeightHorsepower+c.WeightTransmission <= 0 {
		errs = append(errs, errors.New("at least one weight must be positive"))
	}
	return errors.Join(errs...)
}

type MatchResult struct {
	ListingID  *uuid.UUID
	Method     string
	Confidence float64
}

func (r MatchResult) Matched() bool { return r.ListingID != nil }

// ModelCatalog answers whether a make/model pair exists in reference data.
type ModelCatalog interface {
	HasModel(makeName, modelName string) bool
}

// Matcher pairs one extracted vehicle with at most one candidate listing. It is pure.
type Matcher struct {
	cfg     MatchConfig
	catalog ModelCatalog
}

// NewMatcher skips the model lookup when catalog is nil.
func NewMatcher(cfg MatchConfig, catalog ModelCatalog) *Matcher {
	return &Matcher{cfg: cfg, catalog: catalog}
}

func (m *Matcher) Config() MatchConfig { return m.cfg }

func (m *Matcher) Match(v types.ExtractedVehicle, candidates []*types.Listing) MatchResult {
	if m.catalog != nil && !m.catalog.HasModel(v.Make, v.Model) {
		return MatchResult{Method: types.MatchMethodModelNotFound}
	}

	makeKey := listings.NormalizeName(v.Make)
	modelKey := listings.NormalizeName(v.Model)
	variantKey := listings.NormalizeName(v.Variant)

	var (
		exact     *types.Listing
		exactRank float64
		fuzzy     *types.Listing
		bestScore = -1.0
	)
	for _, c := range candidates {
		if c == nil || listings.NormalizeName(c.Make) != makeKey || listings.NormalizeName(c.Model) != modelKey {
			continue
		}
		specs := m.specScore(v, c)
		if listings.NormalizeName(c.Variant) == variantKey {
			if exact == nil || better(specs, c, exactRank, exact) {
				exact, exactRank = c, specs
			}
			continue
		}
		score := m.score(v, c)
		if fuzzy == nil || better(score, c, bestScore, fuzzy) {
			fuzzy, bestScore = c, score
		}
	}

	if exact != nil {
		id := exact.ID
		return MatchResult{ListingID: &id, Method: types.MatchMethodExact, Confidence: 1}
	}
	if fuzzy != nil && bestScore >= m.cfg.Threshold {
		id := fuzzy.ID
		return MatchResult{ListingID: &id, Method: types.MatchMethodFuzzy, Confidence: round4(bestScore)}
	}
	return MatchResult{Method: types.MatchMethodUnmatched}
}

// better orders by score, then most recent update, then lowest ID for determinism.
func better(score float64, c *types.Listing, bestScore float64, best *types.Listing) bool {
	if math.Abs(score-bestScore) > 1e-9 {
		return score > bestScore
	}
	if !c.UpdatedAt.Equal(best.UpdatedAt) {
		return c.UpdatedAt.After(best.UpdatedAt)
	}
	return c.ID.String() < best.ID.String()
}

// score is the weighted similarity in [0,1].
func (m *Matcher) score(v types.ExtractedVehicle, c *types.Listing) float64 {
	total := m.cfg.WeightVariant + m.cfg.WeightHorsepower + m.cfg.WeightTransmission
	if total <= 0 {
		return 0
	}
	s := m.cfg.WeightVariant*VariantSimilarity(v.Variant, c.Variant) +
		m.cfg.WeightHorsepower*m.horsepowerScore(v.Horsepower, c.Horsepower) +
		m.cfg.WeightTransmission*transmissionScore(v.Transmission, c.Transmission)
	return s / total
}

// specScore ranks exact candidates that share make/model/variant.
func (m *Matcher) specScore(v types.ExtractedVehicle, c *types.Listing) float64 {
	return m.horsepowerScore(v.Horsepower, c.Horsepower) + transmissionScore(v.Transmission, c.Transmission)
}

func (m *Matcher) horsepowerScore(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return 1
	}
	tol := m.cfg.HorsepowerTolerance
	if diff > tol {
		return 0
	}
	return 1 - float64(diff)/float64(2*tol)
}

func transmissionScore(a, b string) float64 {
	a, b = listings.NormalizeName(a), listings.NormalizeName(b)
	if a == "" || b == "" {
		return 0.5
	}
	if a == b {
		return 1
	}
	return 0
}

// VariantSimilarity is the Sørensen–Dice coefficient over character bigrams of the
// normalized variant text, ignoring spaces.
func VariantSimilarity(a, b string) float64 {
	a = strings.ReplaceAll(listings.NormalizeName(a), " ", "")
	b = strings.ReplaceAll(listings.NormalizeName(b), " ", "")
	if a == b {
		return 1
	}
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	counts := make(map[string]int, len(ba))
	for _, g := range ba {
		counts[g]++
	}
	shared := 0
	for _, g := range bb {
		if counts[g] > 0 {
			counts[g]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ba)+len(bb))
}

func bigrams(s string) []string {
	r := []rune(s)
	if len(r) < 2 {
		if len(r) == 1 {
			return []string{string(r)}
		}
		return nil
	}
	out := make([]string, 0, len(r)-1)
	for i := 0; i < len(r)-1; i++ {
		out = append(out, string(r[i:i+2]))
	}
	return out
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}
