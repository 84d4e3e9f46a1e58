package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/DoyleJ11/spell-duel-backend/internal/history"
	"github.com/DoyleJ11/spell-duel-backend/internal/hub"
	wire "github.com/DoyleJ11/spell-duel-backend/pkg/types"
)

const (
	defaultMatchLimit = 20
	maxMatchLimit     = 100
)

type MatchLister interface {
	Recent(ctx context.Context, limit int) ([]history.MatchRecord, error)
}

type matchView struct {
	Room       string    `json:"room"`
	Ruleset    string    `json:"ruleset"`
	Winner     string    `json:"winner,omitempty"`
	Loser      string    `json:"loser,omitempty"`
	Rounds     int       `json:"rounds"`
	FinishedAt time.Time `json:"finishedAt"`
}

func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := h.ListJoinable(r.Context())
		if err != nil {
			http.Error(w, "failed to list rooms", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Rooms []wire.RoomSummary `json:"rooms"`
		}{Rooms: rooms})
	}
}

func ListMatches(m MatchLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultMatchLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxMatchLimit)
		}

		recs, err := m.Recent(r.Context(), limit)
		if err != nil {
			http.Error(w, "failed to load matches", http.StatusInternalServerError)
			return
		}
		out := make([]matchView, 0, len(recs))
		for _, rec := range recs {
			out = append(out, matchView{
				Room:       rec.Room,
				Ruleset:    rec.Ruleset,
				Winner:     rec.Winner,
				Loser:      rec.Loser,
				Rounds:     rec.Rounds,
				FinishedAt: rec.FinishedAt,
			})
		}
		writeJSON(w, http.StatusOK, struct {
			Matches []matchView `json:"matches"`
		}{Matches: out})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
