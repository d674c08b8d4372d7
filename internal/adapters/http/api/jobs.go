package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/skillcalc/internal/domain/model"
	"github.com/okian/skillcalc/internal/domain/skillset"
)

// JobsHandler handles asynchronous rating jobs.
type JobsHandler struct {
	jobs     Jobs
	engine   Engine
	maxNotes int
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(jobs Jobs, e Engine, maxNotes int) *JobsHandler {
	return &JobsHandler{jobs: jobs, engine: e, maxNotes: maxNotes}
}

// jobResponse is a stored result plus the rendered rate table.
type jobResponse struct {
	model.Result
	Duplicate bool                       `json:"duplicate,omitempty"`
	Ratings   map[string]skillset.Vector `json:"ratings,omitempty"`
}

func render(r model.Result, duplicate bool) jobResponse { //nolint:gocritic // results travel by value
	out := jobResponse{Result: r, Duplicate: duplicate}
	if r.Table != nil {
		out.Ratings = r.Table.AsMap()
	}
	return out
}

// HandlePostJob handles POST /jobs. Kind defaults to sweep.
func (h *JobsHandler) HandlePostJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_job"
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

	kind := model.JobKind(req.Kind)
	if kind == "" {
		kind = model.KindSweep
	}
	var j model.Job
	switch kind {
	case model.KindSweep:
		j = model.NewJob(kind, s, 0, 0, req.Capped)
	case model.KindGoal:
		j = model.NewJob(kind, s, req.rate(), req.goal(defaultGoal(h.engine)), req.Capped)
	default:
		writeError(w, wrapKind(op, ErrBadRequest, fmt.Errorf("unknown kind %q", req.Kind)))
		return
	}
	res, duplicate, err := h.jobs.Submit(r.Context(), j)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusAccepted
	if duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, render(res, duplicate))
}

// HandleGetJob handles GET /jobs/{id}.
func (h *JobsHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, wrapKind(op, ErrBadRequest, nil))
		return
	}
	res, err := h.jobs.Result(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, render(res, false))
}
