package handlers

import (
	"net/http"
	"time"

	"jimpitan/internal/domain"
)

type connectivityRequest struct {
	Online bool `json:"online"`
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

type pendingItemView struct {
	ID             int64           `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Type           domain.SyncType `json:"type"`
	Endpoint       string          `json:"endpoint"`
	Method         string          `json:"method"`
	Payload        any             `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Connectivity records an online/offline report from the UI.
func (a *App) Connectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if !a.decode(w, r, &req) {
		return
	}
	changed := a.Session.SetOnline(req.Online)
	a.json(w, http.StatusOK, map[string]any{"online": a.Session.Online(), "changed": changed})
}

func (a *App) Visibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.Session.SetVisible(req.Visible)
	a.json(w, http.StatusAccepted, map[string]any{"visible": req.Visible})
}

func (a *App) Pending(w http.ResponseWriter, r *http.Request) {
	items, err := a.Session.Pending(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	views := make([]pendingItemView, 0, len(items))
	for _, it := range items {
		views = append(views, pendingItemView{
			ID:             it.ID,
			IdempotencyKey: it.IdempotencyKey,
			Type:           it.Type,
			Endpoint:       it.Endpoint,
			Method:         it.Method,
			Payload:        it.Payload,
			CreatedAt:      it.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": views, "count": len(views)})
}

// DrainPending replays the queue now. Items that fail stay queued.
func (a *App) DrainPending(w http.ResponseWriter, r *http.Request) {
	res, err := a.Session.Drain(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	failures := make([]map[string]any, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, map[string]any{"id": f.ItemID, "error": errString(f.Err)})
	}
	a.json(w, http.StatusOK, map[string]any{
		"attempted": res.Attempted,
		"replayed":  res.Replayed,
		"remaining": res.Remaining,
		"failures":  failures,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
