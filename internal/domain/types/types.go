// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry: one rated chart ranked by a
// skillset value at 1.0x.
type Entry struct {
	Rank        int     `json:"rank"`
	JobID       string  `json:"job_id"`
	Fingerprint string  `json:"fingerprint"`
	Skillset    string  `json:"skillset"`
	Rating      float64 `json:"rating"`
}
