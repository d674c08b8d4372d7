package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	TopN(ctx context.Context, s skillset.Skillset, n int) ([]types.Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?skillset=S&limit=N. The
// skillset defaults to overall and the limit to 10.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	k, err := parseSkillset(r, op)
	if err != nil {
		writeError(w, err)
		return
	}

	n := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, wrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, wrapKind(op, ErrBadRequest, nil))
		return
	}

	entries, err := h.deps.TopN(r.Context(), k, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
