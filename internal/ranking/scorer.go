// Package ranking computes composite popularity scores and maintains the
// precomputed score index used by relevance ordering.
package ranking

import (
	"time"

	"github.com/dungeun/e-market-search/internal/domain"
)

// Weights control the contribution of each engagement signal.
type Weights struct {
	Orders   float64
	Reviews  float64
	Wishlist float64
	Recency  float64
}

// DefaultWeights is the production weighting.
var DefaultWeights = Weights{
	Orders:   0.5,
	Reviews:  0.2,
	Wishlist: 0.1,
	Recency:  0.2,
}

// recencyWindowDays is the span over which recency decays to zero.
const recencyWindowDays = 100

// Scorer computes a product's composite score.
type Scorer struct {
	weights Weights
	// now is swappable in tests.
	now func() time.Time
}

// NewScorer creates a Scorer. Zero-valued weights fall back to
// DefaultWeights.
func NewScorer(w Weights) *Scorer {
	if w == (Weights{}) {
		w = DefaultWeights
	}
	return &Scorer{weights: w, now: time.Now}
}

// Score combines order, review, and wishlist counts with a linear recency
// term. A product created today scores the full recency bonus; one older
// than the window scores none.
func (s *Scorer) Score(p domain.Product) float64 {
	return float64(p.OrderCount)*s.weights.Orders +
		float64(p.ReviewCount)*s.weights.Reviews +
		float64(p.WishlistCount)*s.weights.Wishlist +
		s.recency(p.CreatedAt)*s.weights.Recency
}

func (s *Scorer) recency(createdAt time.Time) float64 {
	ageDays := s.now().Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	score := recencyWindowDays - ageDays
	if score < 0 {
		return 0
	}
	return score
}
