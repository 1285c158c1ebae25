package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kf7zyx/skywatch/internal/scheduler"
)

func (a *App) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"name":           "skywatch",
		"station_id":     a.cfg.Station.ID,
		"state":          a.state.Load().(string),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"paused":         a.sched.IsPaused(),
		"save_dir":       a.cfg.Data.SaveDir,
	}
	if du := diskUsage(a.cfg.Data.Root); du != nil {
		resp["disk"] = du
	}
	if armed := a.sched.Armed(); armed != nil {
		resp["next_pass"] = armed
	}
	writeJSON(w, resp)
}

// handlePasses returns the persisted queue as-is.
func (a *App) handlePasses(w http.ResponseWriter, _ *http.Request) {
	passes, err := a.store.Load()
	if err != nil {
		jsonError(w, "pass queue unreadable: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, passes)
}

func (a *App) handleNextPass(w http.ResponseWriter, _ *http.Request) {
	armed := a.sched.Armed()
	if armed == nil {
		jsonError(w, "no upcoming pass armed", http.StatusNotFound)
		return
	}
	writeJSON(w, armed)
}

// handleTrigger starts an immediate manual capture.
func (a *App) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Satellite       string `json:"satellite"`
		DurationSeconds int    `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		jsonError(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	raw, _ := json.Marshal(payload)
	writeCommandResult(w, a.sendCommand("trigger", raw))
}

func (a *App) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	writeCommandResult(w, a.sendCommand("refresh", nil))
}

// sendCommand forwards a command to the scheduler and waits for the reply.
func (a *App) sendCommand(cmdType string, payload json.RawMessage) scheduler.CommandResult {
	reply := make(chan scheduler.CommandResult, 1)
	select {
	case a.sched.Commands <- scheduler.Command{Type: cmdType, Payload: payload, Reply: reply}:
	case <-time.After(5 * time.Second):
		return scheduler.CommandResult{OK: false, Error: "scheduler busy"}
	}

	select {
	case res := <-reply:
		return res
	case <-time.After(30 * time.Second):
		return scheduler.CommandResult{OK: false, Error: "scheduler did not reply"}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}

func writeCommandResult(w http.ResponseWriter, result scheduler.CommandResult) {
	if !result.OK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(result)
		return
	}
	writeJSON(w, result)
}
