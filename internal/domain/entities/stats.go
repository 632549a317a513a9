package entities

// StatsSource labels where a DerivedStats value came from. Authoritative stats cover
// every review of the parent; windowed stats cover only the loaded page.
type StatsSource string

const (
	StatsAuthoritative StatsSource = "authoritative"
	StatsWindowed      StatsSource = "windowed"
)

// MinRating and MaxRating bound the rating buckets
const (
	MinRating = 1
	MaxRating = 5
)

// DerivedStats aggregates the ratings of a set of reviews
type DerivedStats struct {
	AverageRating      float64     `json:"averageRating"`
	TotalReviews       int         `json:"totalReviews"`
	RatingDistribution map[int]int `json:"ratingDistribution"`
	Source             StatsSource `json:"source"`
	PlaceID            int64       `json:"placeId,omitempty"`
}

// NewRatingDistribution returns a distribution with every bucket at zero
func NewRatingDistribution() map[int]int {
	dist := make(map[int]int, MaxRating)
	for r := MinRating; r <= MaxRating; r++ {
		dist[r] = 0
	}
	return dist
}

// EmptyStats returns zero stats labelled with source
func EmptyStats(source StatsSource, placeID int64) DerivedStats {
	return DerivedStats{
		RatingDistribution: NewRatingDistribution(),
		Source:             source,
		PlaceID:            placeID,
	}
}

// Consistent reports whether the distribution sums to TotalReviews
func (s DerivedStats) Consistent() bool {
	sum := 0
	for _, n := range s.RatingDistribution {
		sum += n
	}
	return sum == s.TotalReviews
}
