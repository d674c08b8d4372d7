// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/skillcalc/internal/domain/model"
	"github.com/okian/skillcalc/internal/domain/notes"
	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
	"github.com/okian/skillcalc/pkg/logger"
)

// Engine rates charts synchronously.
type Engine interface {
	Version() int
	RateSweepCapped(ctx context.Context, s *notes.Stream, keycount int, capped bool) (skillset.Table, error)
	GoalRating(ctx context.Context, s *notes.Stream, rate, goal float64, keycount int, capped bool) (skillset.Vector, error)
}

// Jobs accepts asynchronous rating jobs and serves their results.
type Jobs interface {
	// Submit queues j unless an identical job is known, in which case the
	// known job's result is returned with duplicate=true.
	Submit(ctx context.Context, j model.Job) (res model.Result, duplicate bool, err error)
	Result(ctx context.Context, jobID string) (model.Result, error)
}

// Leaderboard serves the hardest rated charts per skillset.
type Leaderboard interface {
	TopN(ctx context.Context, s skillset.Skillset, n int) ([]types.Entry, error)
	Rank(ctx context.Context, s skillset.Skillset, fingerprint string) (types.Entry, error)
}

// Dependencies bundles everything the handlers need.
type Dependencies interface {
	Engine
	Jobs
	Leaderboard
	StatsProvider
}

// Option configures a Server.
type Option func(*Server)

// WithMaxNotes limits the onsets accepted per chart.
func WithMaxNotes(n int) Option {
	return func(s *Server) { s.maxNotes = n }
}

// WithMaxLeaderboardLimit caps the limit query parameter.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithRequestTimeout bounds synchronous rating requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	maxNotes int
	maxLimit int
	timeout  time.Duration
	logger   logger.Logger

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	ratingsHandler     *RatingsHandler
	jobsHandler        *JobsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		maxLimit: 100,
		timeout:  30 * time.Second,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.ratingsHandler = NewRatingsHandler(deps, s.maxNotes, s.timeout, s.logger)
	s.jobsHandler = NewJobsHandler(deps, deps, s.maxNotes)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/version", MetricsMiddleware(s.healthHandler.HandleVersion, "version"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/msd", MetricsMiddleware(s.ratingsHandler.HandleMSD, "msd"))
	mux.HandleFunc("/ssr", MetricsMiddleware(s.ratingsHandler.HandleSSR, "ssr"))
	mux.HandleFunc("/jobs", MetricsMiddleware(s.jobsHandler.HandlePostJob, "jobs"))
	mux.HandleFunc("/jobs/", MetricsMiddleware(s.jobsHandler.HandleGetJob, "job"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// parseSkillset reads the skillset query parameter, defaulting to overall.
func parseSkillset(r *http.Request, op string) (skillset.Skillset, error) {
	name := r.URL.Query().Get("skillset")
	if name == "" {
		return skillset.Overall, nil
	}
	k, err := skillset.Parse(name)
	if err != nil {
		return 0, wrapKind(op, ErrBadRequest, err)
	}
	return k, nil
}
