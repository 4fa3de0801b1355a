package models

// LikeResult is the like state of one item for one user after a toggle.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

// VisitorStats holds the site-wide visitor counters.
type VisitorStats struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
	Month int64 `json:"month"`
}
