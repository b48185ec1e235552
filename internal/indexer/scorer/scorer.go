// Package scorer computes the ranking score stored in term postings.
// Recency is the base; engagement adds a bounded bonus so a popular old
// article cannot outrank fresh content indefinitely.
package scorer

const (
	ViewsWeight      = 0.1
	MaxViewsBonus    = 100.0
	CommentsWeight   = 0.5
	MaxCommentsBonus = 50.0
)

// Score returns publishedAt (unix seconds) plus the capped views and
// comments bonuses.
func Score(publishedAt int64, views int64, comments int64) float64 {
	return float64(publishedAt) + ViewsBonus(views) + CommentsBonus(comments)
}

func ViewsBonus(views int64) float64 {
	return capped(float64(views)*ViewsWeight, MaxViewsBonus)
}

func CommentsBonus(comments int64) float64 {
	return capped(float64(comments)*CommentsWeight, MaxCommentsBonus)
}

func capped(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
