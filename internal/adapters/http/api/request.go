package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/skillcalc/internal/domain/notes"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
)

const maxBodyBytes = 64 << 20

// noteRow is one onset: a time in seconds and the lanes hit.
type noteRow struct {
	Time  float64 `json:"time"`
	Lanes []int   `json:"lanes"`
}

// chartRequest carries a note stream either as rows or as parallel time
// and bitmask arrays.
type chartRequest struct {
	Keycount int       `json:"keycount"`
	Notes    []noteRow `json:"notes,omitempty"`
	Times    []float64 `json:"times,omitempty"`
	Masks    []uint32  `json:"masks,omitempty"`
}

func (c chartRequest) onsets() int {
	if len(c.Notes) > 0 {
		return len(c.Notes)
	}
	return len(c.Times)
}

func (c chartRequest) stream() (*notes.Stream, error) {
	if len(c.Notes) > 0 {
		if len(c.Times) > 0 || len(c.Masks) > 0 {
			return nil, fmt.Errorf("%w: give either notes or times and masks", types.ErrInvalidNoteData)
		}
		rows := make([]notes.Row, len(c.Notes))
		for i, n := range c.Notes {
			rows[i] = notes.Row{Time: n.Time, Lanes: n.Lanes}
		}
		return notes.FromRows(c.Keycount, rows)
	}
	return notes.FromMasks(c.Keycount, c.Times, c.Masks)
}

// msdRequest is the body of POST /msd.
type msdRequest struct {
	chartRequest
	Capped bool      `json:"capped"`
	Rates  []float64 `json:"rates,omitempty"`
}

// ssrRequest is the body of POST /ssr and, with Kind, of POST /jobs.
type ssrRequest struct {
	chartRequest
	Kind   string   `json:"kind,omitempty"`
	Rate   *float64 `json:"rate,omitempty"`
	Goal   *float64 `json:"goal,omitempty"`
	Capped bool     `json:"capped"`
}

func (r ssrRequest) rate() float64 {
	if r.Rate == nil {
		return 1.0
	}
	return *r.Rate
}

func (r ssrRequest) goal(def float64) float64 {
	if r.Goal == nil {
		return def
	}
	return *r.Goal
}

// decode reads a JSON body into v and parses its chart. maxNotes <= 0
// disables the onset limit.
func decode(w http.ResponseWriter, r *http.Request, op string, v interface{ chart() *chartRequest }, maxNotes int) (*notes.Stream, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return nil, wrapKind(op, ErrBadRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, wrapKind(op, ErrBadRequest, errors.New("trailing data after body"))
	}

	c := v.chart()
	if maxNotes > 0 && c.onsets() > maxNotes {
		return nil, wrapKind(op, ErrTooManyNotes, fmt.Errorf("%d onsets, limit %d", c.onsets(), maxNotes))
	}
	s, err := c.stream()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (c *chartRequest) chart() *chartRequest { return c }

// ratingsResponse renders a rate table keyed "0.7".."2.0".
type ratingsResponse struct {
	Version     int                        `json:"version"`
	Fingerprint string                     `json:"fingerprint"`
	Capped      bool                       `json:"capped"`
	Ratings     map[string]skillset.Vector `json:"ratings"`
	Aliases     map[string]laneAliases     `json:"aliases,omitempty"`
}

// ssrResponse renders one rating vector.
type ssrResponse struct {
	Version     int             `json:"version"`
	Fingerprint string          `json:"fingerprint"`
	Rate        float64         `json:"rate"`
	Goal        float64         `json:"goal"`
	Capped      bool            `json:"capped"`
	Ratings     skillset.Vector `json:"ratings"`
	Aliases     *laneAliases    `json:"aliases,omitempty"`
}

// laneAliases carries the 6K/7K names of jumpstream and handstream.
type laneAliases struct {
	Chordstream float64 `json:"chordstream"`
	Bracketing  float64 `json:"bracketing"`
}

// aliasesFor returns the 6K/7K names of v, or nil for other keycounts.
func aliasesFor(keycount int, v skillset.Vector) *laneAliases {
	if keycount != 6 && keycount != 7 {
		return nil
	}
	return &laneAliases{Chordstream: v.Chordstream(), Bracketing: v.Bracketing()}
}
