// Package notes holds the normalized, time-ordered note stream that every
// difficulty calculation consumes.
package notes

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/okian/skillcalc/internal/domain/types"
)

// Keycount bounds.
const (
	MinKeycount = 1
	MaxKeycount = 10
)

// Event is one onset: a time in seconds and the lanes pressed at it.
type Event struct {
	Time    float64 `json:"time"`
	Columns uint32  `json:"columns"`
}

// Lanes returns the number of lanes set in the event.
func (e Event) Lanes() int { return bits.OnesCount32(e.Columns) }

// Row is an onset given as a list of lane indices.
type Row struct {
	Time  float64 `json:"time"`
	Lanes []int   `json:"lanes"`
}

// Stream is an immutable note stream. Events are strictly increasing in
// time; onsets sharing a time are merged on construction.
type Stream struct {
	keycount int
	events   []Event
	notes    int
}

// New validates events and builds a Stream. Events must be sorted by time;
// equal times are merged by OR-ing their lanes.
func New(keycount int, events []Event) (*Stream, error) {
	if len(events) == 0 {
		return nil, types.ErrEmptyStream
	}
	if keycount < MinKeycount || keycount > MaxKeycount {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", types.ErrInvalidKeycount, keycount, MinKeycount, MaxKeycount)
	}
	limit := uint32(1)<<uint(keycount) - 1

	merged := make([]Event, 0, len(events))
	for i, e := range events {
		if math.IsNaN(e.Time) || math.IsInf(e.Time, 0) || e.Time < 0 {
			return nil, fmt.Errorf("%w: event %d has time %v", types.ErrInvalidNoteData, i, e.Time)
		}
		if e.Columns == 0 {
			return nil, fmt.Errorf("%w: event %d has no lanes", types.ErrInvalidNoteData, i)
		}
		if e.Columns&^limit != 0 {
			return nil, fmt.Errorf("%w: event %d uses a lane outside %dK", types.ErrInvalidNoteData, i, keycount)
		}
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			switch {
			case e.Time < last.Time:
				return nil, fmt.Errorf("%w: event %d goes back in time (%v < %v)", types.ErrInvalidNoteData, i, e.Time, last.Time)
			case e.Time == last.Time:
				last.Columns |= e.Columns
				continue
			}
		}
		merged = append(merged, e)
	}

	s := &Stream{keycount: keycount, events: merged}
	for _, e := range merged {
		s.notes += e.Lanes()
	}
	return s, nil
}

// FromRows builds a Stream from lane-index rows.
func FromRows(keycount int, rows []Row) (*Stream, error) {
	if len(rows) == 0 {
		return nil, types.ErrEmptyStream
	}
	events := make([]Event, len(rows))
	for i, r := range rows {
		if len(r.Lanes) == 0 {
			return nil, fmt.Errorf("%w: row %d is empty", types.ErrInvalidNoteData, i)
		}
		var mask uint32
		for _, lane := range r.Lanes {
			if lane < 0 || lane >= MaxKeycount {
				return nil, fmt.Errorf("%w: row %d lane %d", types.ErrInvalidNoteData, i, lane)
			}
			mask |= 1 << uint(lane)
		}
		events[i] = Event{Time: r.Time, Columns: mask}
	}
	return New(keycount, events)
}

// FromMasks builds a Stream from parallel time and bitmask slices.
func FromMasks(keycount int, times []float64, masks []uint32) (*Stream, error) {
	if len(times) != len(masks) {
		return nil, fmt.Errorf("%w: %d times but %d masks", types.ErrInvalidNoteData, len(times), len(masks))
	}
	if len(times) == 0 {
		return nil, types.ErrEmptyStream
	}
	events := make([]Event, len(times))
	for i := range times {
		events[i] = Event{Time: times[i], Columns: masks[i]}
	}
	return New(keycount, events)
}

// Keycount returns the lane count.
func (s *Stream) Keycount() int { return s.keycount }

// Len returns the number of distinct onsets.
func (s *Stream) Len() int { return len(s.events) }

// NoteCount returns the number of notes, counting each lane of a chord.
func (s *Stream) NoteCount() int { return s.notes }

// At returns the i-th onset.
func (s *Stream) At(i int) Event { return s.events[i] }

// Duration is the time between the first and last onset.
func (s *Stream) Duration() float64 {
	return s.events[len(s.events)-1].Time - s.events[0].Time
}

// Fingerprint is a stable, URL-safe SHA-256 digest of keycount and onsets.
func (s *Stream) Fingerprint() string {
	h := sha256.New()
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(s.keycount))
	h.Write(buf[:4])
	for _, e := range s.events {
		binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(e.Time))
		binary.LittleEndian.PutUint32(buf[8:], e.Columns)
		h.Write(buf[:])
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
