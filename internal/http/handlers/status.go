package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jimpitan/internal/domain"
	"jimpitan/internal/i18n"
	"jimpitan/internal/session"
)

const streamHeartbeat = 25 * time.Second

type streamEvent struct {
	session.Event
	Message string `json:"message,omitempty"`
}

func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	st, err := a.Session.Status(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, st)
}

// StatusStream pushes session events as server-sent events until the client leaves.
func (a *App) StatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	// The server write timeout would otherwise cut long-lived streams.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events, unsubscribe := a.Session.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	locale := a.locale(r)
	if st, err := a.Session.Status(r.Context()); err == nil {
		if err := writeSSE(w, "status", st); err != nil {
			return
		}
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e, ok := <-events:
			if !ok {
				return
			}
			payload := streamEvent{Event: e, Message: a.eventMessage(locale, e)}
			if err := writeSSE(w, string(e.Kind), payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func (a *App) eventMessage(locale string, e session.Event) string {
	switch e.Kind {
	case session.EventOutcome:
		if e.Outcome != nil {
			return a.Translator.Outcome(locale, *e.Outcome)
		}
	case session.EventConnectivity:
		if e.Online != nil && *e.Online {
			return a.Translator.Message(locale, i18n.KeyOnline)
		}
		return a.Translator.Message(locale, i18n.KeyOffline)
	case session.EventReplayed:
		if e.DonorName != "" {
			return a.Translator.Message(locale, i18n.KeyReplayed, e.DonorName, e.Amount)
		}
	case session.EventDayChanged:
		return a.Translator.Message(locale, i18n.KeyDayChanged)
	case session.EventUploadState:
		if e.UploadState != nil && e.UploadState.State == domain.UploadLocked {
			return a.Translator.Message(locale, i18n.KeyLocked, e.Category.Label())
		}
	}
	return ""
}
