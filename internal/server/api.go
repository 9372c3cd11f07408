package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"choreboard/internal/chore"
	"choreboard/internal/engine"
	"choreboard/internal/history"
	"choreboard/internal/instance"
	"choreboard/internal/kid"
	"choreboard/internal/notify"
	"choreboard/internal/points"
)

// App holds what the handlers depend on. This makes it obvious at the
// composition root which pieces the HTTP surface touches.
type App struct {
	Engine *engine.Engine
	// History is optional; the /api/history routes 404 without it.
	History history.Repo
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errStatus(err))
}

func errStatus(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, chore.ErrNotFound),
		errors.Is(err, kid.ErrNotFound),
		errors.Is(err, instance.ErrNotFound),
		errors.Is(err, points.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotAssigned):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrCompleted),
		errors.Is(err, instance.ErrAlreadyClaimed),
		errors.Is(err, instance.ErrNoClaim),
		errors.Is(err, instance.ErrBadTransition):
		return http.StatusConflict
	case errors.Is(err, chore.ErrBadPolicyMix), errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func RegisterAPIRoutes(mux *http.ServeMux, rr *RouteRegistry, app *App) {
	e := app.Engine

	// Chores

	handle(mux, rr, "GET /api/chores", "List chores", "", func(w http.ResponseWriter, r *http.Request) {
		chores, err := e.Chores.List(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, chores)
	})

	handle(mux, rr, "POST /api/chores", "Create chore", `{"name":"dishes","points":5,"kid_ids":["k1"],"recurrence":{"frequency":"daily"},"reset_type":"midnight_single","overdue":"clear_at_reset","pending_claim":"hold","criteria":"independent"}`, func(w http.ResponseWriter, r *http.Request) {
		var body chore.Chore
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		created, err := e.Chores.Create(r.Context(), body)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, created)
	})

	handle(mux, rr, "GET /api/chores/{id}", "Get chore", "", func(w http.ResponseWriter, r *http.Request) {
		ch, err := e.Chores.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, ch)
	})

	handle(mux, rr, "PUT /api/chores/{id}", "Update chore", "", func(w http.ResponseWriter, r *http.Request) {
		var body chore.Chore
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		body.ID = r.PathValue("id")
		updated, err := e.Chores.Update(r.Context(), body)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, updated)
	})

	handle(mux, rr, "DELETE /api/chores/{id}", "Delete chore", "", func(w http.ResponseWriter, r *http.Request) {
		if err := e.Chores.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	handle(mux, rr, "POST /api/chores/{id}/assign", "Create tracking instances for a chore's assigned kids", "", func(w http.ResponseWriter, r *http.Request) {
		ch, err := e.Chores.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		instances, err := e.AssignChore(r.Context(), ch)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, instances)
	})

	// Kids

	handle(mux, rr, "GET /api/kids", "List kids", "", func(w http.ResponseWriter, r *http.Request) {
		kids, err := e.Kids.List(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, kids)
	})

	handle(mux, rr, "POST /api/kids", "Create kid", `{"name":"Ada"}`, func(w http.ResponseWriter, r *http.Request) {
		var body kid.Kid
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		if body.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		created, err := e.Kids.Create(r.Context(), body)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, created)
	})

	handle(mux, rr, "GET /api/kids/{id}", "Get kid", "", func(w http.ResponseWriter, r *http.Request) {
		k, err := e.Kids.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, k)
	})

	handle(mux, rr, "DELETE /api/kids/{id}", "Delete kid", "", func(w http.ResponseWriter, r *http.Request) {
		if err := e.Kids.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	handle(mux, rr, "GET /api/kids/{id}/points", "Get a kid's points ledger", "", func(w http.ResponseWriter, r *http.Request) {
		l, err := e.Points.Repo.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, l)
	})

	// Instances and the claim workflow

	handle(mux, rr, "GET /api/instances", "List instances; filters: chore_id, kid_id, state (comma-separated)", "", func(w http.ResponseWriter, r *http.Request) {
		f := instance.ListFilter{
			ChoreID: r.URL.Query().Get("chore_id"),
			KidID:   r.URL.Query().Get("kid_id"),
		}
		if states := r.URL.Query().Get("state"); states != "" {
			for _, s := range strings.Split(states, ",") {
				f.States = append(f.States, instance.State(strings.TrimSpace(s)))
			}
		}
		instances, err := e.Instances.List(r.Context(), f)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, instances)
	})

	handle(mux, rr, "GET /api/instances/{id}", "Get instance", "", func(w http.ResponseWriter, r *http.Request) {
		in, err := e.Instances.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, in)
	})

	handle(mux, rr, "POST /api/instances/{id}/claim", "Kid claims a chore as done", `{"kid_id":"k1"}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			KidID string `json:"kid_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.KidID == "" {
			http.Error(w, "kid_id is required", http.StatusBadRequest)
			return
		}
		in, err := e.Claim(r.Context(), r.PathValue("id"), body.KidID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, in)
	})

	handle(mux, rr, "POST /api/instances/{id}/approve", "Approve a kid's claim", `{"kid_id":"k1","approver":"parent"}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			KidID    string `json:"kid_id"`
			Approver string `json:"approver"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.KidID == "" {
			http.Error(w, "kid_id is required", http.StatusBadRequest)
			return
		}
		in, err := e.Approve(r.Context(), r.PathValue("id"), body.KidID, body.Approver)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, in)
	})

	handle(mux, rr, "POST /api/instances/{id}/disapprove", "Reject a kid's claim", `{"kid_id":"k1","actor":"parent","reason":"not done"}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			KidID  string `json:"kid_id"`
			Actor  string `json:"actor"`
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.KidID == "" {
			http.Error(w, "kid_id is required", http.StatusBadRequest)
			return
		}
		in, err := e.Disapprove(r.Context(), r.PathValue("id"), body.KidID, body.Actor, body.Reason)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, in)
	})

	handle(mux, rr, "POST /api/instances/{id}/reset", "Force-reset one instance and reschedule it", "", func(w http.ResponseWriter, r *http.Request) {
		in, err := e.ForceReset(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, in)
	})

	handle(mux, rr, "POST /api/instances/{id}/reschedule", "Recompute one instance's due date", "", func(w http.ResponseWriter, r *http.Request) {
		in, err := e.ForceReschedule(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, in)
	})

	// Admin sweeps

	handle(mux, rr, "POST /api/admin/tick", "Run one due-date sweep now", "", func(w http.ResponseWriter, r *http.Request) {
		report, err := e.RunTick(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, report)
	})

	handle(mux, rr, "POST /api/admin/midnight", "Run the midnight boundary pass now", "", func(w http.ResponseWriter, r *http.Request) {
		report, err := e.RunMidnight(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, report)
	})

	handle(mux, rr, "POST /api/admin/reset-all", "Reset every instance to pending", "", func(w http.ResponseWriter, r *http.Request) {
		n, err := e.ResetAll(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]int{"reset": n})
	})

	handle(mux, rr, "POST /api/admin/reset-overdue", "Reset only overdue instances", "", func(w http.ResponseWriter, r *http.Request) {
		n, err := e.ResetOverdue(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]int{"reset": n})
	})

	// Activity history

	if app.History != nil {
		handle(mux, rr, "GET /api/history", "List recorded events; filters: since (RFC 3339), kind (comma-separated)", "", func(w http.ResponseWriter, r *http.Request) {
			since, kinds, err := historyQuery(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			entries, err := app.History.List(since, kinds)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, entries)
		})

		handle(mux, rr, "GET /api/history/stats", "Aggregate recorded activity", "", func(w http.ResponseWriter, r *http.Request) {
			since, kinds, err := historyQuery(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			entries, err := app.History.List(since, kinds)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, history.CalculateStats(entries, since))
		})
	}

	handle(mux, rr, "GET /api/routes", "List registered routes", "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, rr.List())
	})
}

func historyQuery(r *http.Request) (time.Time, []notify.Kind, error) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, nil, errors.New("since must be RFC 3339")
		}
		since = parsed
	}
	var kinds []notify.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			kinds = append(kinds, notify.Kind(strings.TrimSpace(k)))
		}
	}
	return since, kinds, nil
}
