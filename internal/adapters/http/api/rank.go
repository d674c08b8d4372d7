package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/skillcalc/internal/domain/skillset"
	"github.com/okian/skillcalc/internal/domain/types"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, s skillset.Skillset, fingerprint string) (types.Entry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rank/{fingerprint}?skillset=S requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	fp := strings.TrimPrefix(r.URL.Path, "/rank/")
	if fp == "" || strings.Contains(fp, "/") {
		writeError(w, wrapKind(op, ErrBadRequest, nil))
		return
	}
	k, err := parseSkillset(r, op)
	if err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.deps.Rank(r.Context(), k, fp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
