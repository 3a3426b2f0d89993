package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"jimpitan/internal/domain"
	"jimpitan/internal/i18n"
)

type upsertDraftRequest struct {
	Amount int64 `json:"amount"`
}

type draftsResponse struct {
	Category       domain.Category `json:"category,omitempty"`
	Label          string          `json:"label,omitempty"`
	Entries        any             `json:"entries"`
	Total          int64           `json:"total"`
	TotalFormatted string          `json:"total_formatted"`
	Remaining      []string        `json:"remaining"`
	AllEntered     bool            `json:"all_entered"`
	CanSubmit      bool            `json:"can_submit"`
}

func (a *App) draftsBody(r *http.Request) draftsResponse {
	view := a.Session.Drafts()
	remaining := view.Remaining
	if remaining == nil {
		remaining = []string{}
	}
	resp := draftsResponse{
		Category:       view.Category,
		Entries:        view.Entries,
		Total:          view.Total,
		TotalFormatted: a.Translator.Rupiah(a.locale(r), view.Total),
		Remaining:      remaining,
		AllEntered:     view.AllEntered,
		CanSubmit:      view.CanSubmit,
	}
	if view.Category != "" {
		resp.Label = view.Category.Label()
	}
	if view.Entries == nil {
		resp.Entries = []any{}
	}
	return resp
}

func (a *App) Drafts(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.draftsBody(r))
}

func donorParam(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "donor")
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	name = strings.TrimSpace(name)
	return name, name != ""
}

// UpsertDraft records or replaces the amount of one donor.
func (a *App) UpsertDraft(w http.ResponseWriter, r *http.Request) {
	donor, ok := donorParam(r)
	if !ok {
		a.error(w, http.StatusBadRequest, "validation", "donor name is required")
		return
	}
	var req upsertDraftRequest
	if !a.decode(w, r, &req) {
		return
	}
	inserted, err := a.Session.Upsert(donor, req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	code := http.StatusOK
	if inserted {
		code = http.StatusCreated
	}
	a.json(w, code, map[string]any{"inserted": inserted, "drafts": a.draftsBody(r)})
}

func (a *App) RemoveDraft(w http.ResponseWriter, r *http.Request) {
	donor, ok := donorParam(r)
	if !ok {
		a.error(w, http.StatusBadRequest, "validation", "donor name is required")
		return
	}
	removed := a.Session.Remove(donor)
	a.json(w, http.StatusOK, map[string]any{"removed": removed, "drafts": a.draftsBody(r)})
}

func (a *App) ClearDrafts(w http.ResponseWriter, r *http.Request) {
	a.Session.ClearDrafts()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) lockedMessage(r *http.Request, cat domain.Category) string {
	return a.Translator.Message(a.locale(r), i18n.KeyLocked, cat.Label())
}
