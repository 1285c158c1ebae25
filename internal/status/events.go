// Package status carries short, fire-and-forget status updates from the
// core components to whoever is watching: every event is fanned out to all
// connected WebSocket clients. Publishing never blocks and never fails the
// caller; if nobody is listening the event is dropped.
package status

import "time"

// Sink is the collaborator interface the core publishes into.
type Sink interface {
	Publish(v any)
}

// NopSink discards every event. Used in tests and before the hub is up.
type NopSink struct{}

func (NopSink) Publish(any) {}

// Event is the envelope shared by every event type.
type Event struct {
	Type      string `json:"type"`
	TS        string `json:"ts"`
	Component string `json:"component"`
}

func envelope(typ, component string) Event {
	return Event{
		Type:      typ,
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		Component: component,
	}
}

// LogLine carries a human-readable status string at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NewLog builds a log event for the given component.
func NewLog(component, level, message string) LogLine {
	return LogLine{Event: envelope("log", component), Level: level, Message: message}
}

// StateTransition is emitted when the daemon moves between operating states.
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

func NewState(from, to string) StateTransition {
	return StateTransition{Event: envelope("state", "skywatchd"), From: from, To: to}
}

// PassScheduled announces the next armed pass.
type PassScheduled struct {
	Event
	Satellite       string  `json:"satellite"`
	FreqHz          int     `json:"freq_hz"`
	Start           string  `json:"start"`
	DurationMinutes int     `json:"duration_minutes"`
	MaxElevation    float64 `json:"max_elevation"`
}

// NewPassScheduled builds the armed-pass announcement.
func NewPassScheduled(satellite string, freqHz int, start string, durationMinutes int, maxElevation float64) PassScheduled {
	return PassScheduled{
		Event:           envelope("pass_scheduled", "scheduler"),
		Satellite:       satellite,
		FreqHz:          freqHz,
		Start:           start,
		DurationMinutes: durationMinutes,
		MaxElevation:    maxElevation,
	}
}

// Progress reports incremental completion of recording or downsampling.
type Progress struct {
	Event
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Detail  string `json:"detail"`
}

func NewProgress(component, stage string, percent int, detail string) Progress {
	return Progress{Event: envelope("progress", component), Stage: stage, Percent: percent, Detail: detail}
}

// Heartbeat lets clients detect connectivity and track uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func NewHeartbeat(state string, uptime time.Duration) Heartbeat {
	return Heartbeat{
		Event:         envelope("heartbeat", "skywatchd"),
		State:         state,
		UptimeSeconds: int64(uptime.Seconds()),
	}
}
