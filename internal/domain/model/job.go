// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/skillcalc/internal/domain/notes"
	"github.com/okian/skillcalc/internal/domain/skillset"
)

// JobKind selects what a job computes.
type JobKind string

// Job kinds.
const (
	KindSweep JobKind = "sweep" // 14-rate table
	KindGoal  JobKind = "goal"  // one rate, one score goal
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

// Job states.
const (
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "failed"
)

// Job is one rating request accepted by the service.
type Job struct {
	ID          string
	Kind        JobKind
	Fingerprint string
	Stream      *notes.Stream
	Keycount    int
	Rate        float64
	Goal        float64
	Capped      bool
	Tuning      string // calibration ID; results of different tunings are never shared
	Submitted   time.Time
}

// NewJob creates a job with a fresh ID for stream.
func NewJob(kind JobKind, s *notes.Stream, rate, goal float64, capped bool) Job {
	return Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Fingerprint: s.Fingerprint(),
		Stream:      s,
		Keycount:    s.Keycount(),
		Rate:        rate,
		Goal:        goal,
		Capped:      capped,
		Submitted:   time.Now(),
	}
}

// DedupeKey identifies jobs that would produce the same result.
func (j Job) DedupeKey() string {
	if j.Kind == KindSweep {
		return fmt.Sprintf("%s|%s|%s|%t", j.Tuning, j.Kind, j.Fingerprint, j.Capped)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%t", j.Tuning, j.Kind, j.Fingerprint,
		strconv.FormatFloat(j.Rate, 'g', -1, 64), strconv.FormatFloat(j.Goal, 'g', -1, 64), j.Capped)
}

// Result is the outcome of a job as stored and served.
type Result struct {
	JobID       string           `json:"job_id"`
	Kind        JobKind          `json:"kind"`
	Status      JobStatus        `json:"status"`
	Fingerprint string           `json:"fingerprint"`
	Keycount    int              `json:"keycount"`
	Onsets      int              `json:"onsets"`
	Notes       int              `json:"notes"`
	Version     int              `json:"version,omitempty"`
	Tuning      string           `json:"tuning,omitempty"`
	Rate        float64          `json:"rate,omitempty"`
	Goal        float64          `json:"goal,omitempty"`
	Capped      bool             `json:"capped"`
	Table       *skillset.Table  `json:"-"`
	Vector      *skillset.Vector `json:"vector,omitempty"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	Error       string           `json:"error,omitempty"`
	Submitted   time.Time        `json:"submitted"`
	Finished    time.Time        `json:"finished,omitempty"`
}

// Pending builds the queued result of j.
func Pending(j Job) Result {
	return Result{
		JobID:       j.ID,
		Kind:        j.Kind,
		Status:      StatusQueued,
		Fingerprint: j.Fingerprint,
		Keycount:    j.Keycount,
		Onsets:      j.Stream.Len(),
		Notes:       j.Stream.NoteCount(),
		Tuning:      j.Tuning,
		Rate:        j.Rate,
		Goal:        j.Goal,
		Capped:      j.Capped,
		Submitted:   j.Submitted,
	}
}

// Rating returns the value ranked on the leaderboard for skillset s: the
// 1.0x entry of a finished sweep. Goal jobs are not ranked.
func (r Result) Rating(s skillset.Skillset) (float64, bool) {
	if r.Status != StatusDone || r.Table == nil {
		return 0, false
	}
	v, err := r.Table.At(1.0)
	if err != nil {
		return 0, false
	}
	return v.Get(s), true
}
