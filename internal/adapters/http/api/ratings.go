package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/skillcalc/internal/domain/calibration"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/pkg/logger"
)

// RatingsHandler rates charts within the request.
type RatingsHandler struct {
	engine   Engine
	maxNotes int
	timeout  time.Duration
	logger   logger.Logger
}

// NewRatingsHandler creates a ratings handler.
func NewRatingsHandler(e Engine, maxNotes int, timeout time.Duration, l logger.Logger) *RatingsHandler {
	return &RatingsHandler{engine: e, maxNotes: maxNotes, timeout: timeout, logger: l}
}

// HandleMSD handles POST /msd: the rate table of a chart, optionally
// restricted to some rates.
func (h *RatingsHandler) HandleMSD(w http.ResponseWriter, r *http.Request) {
	const op = "api.msd"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req msdRequest
	s, err := decode(w, r, op, &req, h.maxNotes)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tbl, err := h.engine.RateSweepCapped(ctx, s, req.Keycount, req.Capped)
	if err != nil {
		h.logger.Debug(ctx, "msd failed", logger.Error(err))
		writeError(w, err)
		return
	}

	ratings := tbl.AsMap()
	if len(req.Rates) > 0 {
		vs, err := tbl.Subset(req.Rates)
		if err != nil {
			writeError(w, err)
			return
		}
		ratings = make(map[string]skillset.Vector, len(vs))
		for i, v := range vs {
			ratings[strconv.FormatFloat(req.Rates[i], 'f', 1, 64)] = v
		}
	}

	resp := ratingsResponse{
		Version:     h.engine.Version(),
		Fingerprint: s.Fingerprint(),
		Capped:      req.Capped,
		Ratings:     ratings,
	}
	for rate, v := range ratings {
		if a := aliasesFor(s.Keycount(), v); a != nil {
			if resp.Aliases == nil {
				resp.Aliases = make(map[string]laneAliases, len(ratings))
			}
			resp.Aliases[rate] = *a
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSSR handles POST /ssr: the rating of a chart at one rate for one
// score goal. Rate defaults to 1.0 and goal to the default goal.
func (h *RatingsHandler) HandleSSR(w http.ResponseWriter, r *http.Request) {
	const op = "api.ssr"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req ssrRequest
	s, err := decode(w, r, op, &req, h.maxNotes)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rate, goal := req.rate(), req.goal(defaultGoal(h.engine))
	v, err := h.engine.GoalRating(ctx, s, rate, goal, req.Keycount, req.Capped)
	if err != nil {
		h.logger.Debug(ctx, "ssr failed", logger.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ssrResponse{
		Version:     h.engine.Version(),
		Fingerprint: s.Fingerprint(),
		Rate:        rate,
		Goal:        goal,
		Capped:      req.Capped,
		Ratings:     v,
		Aliases:     aliasesFor(s.Keycount(), v),
	})
}

// defaultGoal asks the engine for its calibrated default when it exposes
// one.
func defaultGoal(e any) float64 {
	if p, ok := e.(interface{ Params() calibration.Params }); ok {
		return p.Params().Score.DefaultGoal
	}
	return calibration.Default().Score.DefaultGoal
}
