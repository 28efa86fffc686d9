package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/papaburgs/fluffy-miner/internal/api"
	"github.com/papaburgs/fluffy-miner/internal/events"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

func (a *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := a.game.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, status.Status)
}

func (a *App) AgentHandler(w http.ResponseWriter, r *http.Request) {
	agent, err := a.game.Agent(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (a *App) StartingLocationHandler(w http.ResponseWriter, r *http.Request) {
	wp, err := a.game.StartingLocation(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wp)
}

func (a *App) ContractsHandler(w http.ResponseWriter, r *http.Request) {
	contracts, err := a.game.Contracts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

func (a *App) NegotiateContractHandler(w http.ResponseWriter, r *http.Request) {
	contracts, err := a.game.NegotiateContract(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

func (a *App) AcceptContractHandler(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("id")
	if id == "" {
		http.Error(w, "missing contract id", http.StatusBadRequest)
		return
	}
	contract, err := a.game.AcceptContract(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

func (a *App) ShipsHandler(w http.ResponseWriter, r *http.Request) {
	ships, err := a.fleet.Ships(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ships)
}

// SubmitHandler runs the workflow detached from the request context, a client
// that disconnects does not stop the run.
func (a *App) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		slog.Warn("submit failed", "run", res.RunID, "error", err)
		writeJSON(w, statusFor(err), map[string]string{"runId": res.RunID, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// EventsHandler streams server-sent events until the client disconnects.
func (a *App) EventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range a.publisher.Stream(r.Context()) {
		data, err := events.Marshal(ev)
		if err != nil {
			slog.Error("could not marshal event", "type", ev.Type(), "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			slog.Debug("event client gone", "error", err)
			return
		}
		flusher.Flush()
	}
}

func (a *App) RunHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	steps, err := a.store.ListRun(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(steps) == 0 {
		writeError(w, r, fmt.Errorf("run %s: %w", id, types.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var apiErr *api.Error
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNoDockedShip):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidWaypointSymbol):
		return http.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
