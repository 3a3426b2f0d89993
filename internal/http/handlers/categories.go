package handlers

import (
	"net/http"

	"jimpitan/internal/domain"
)

type categoryView struct {
	Key    domain.Category    `json:"key"`
	Label  string             `json:"label"`
	Donors []string           `json:"donors"`
	State  domain.UploadState `json:"state"`
	Active bool               `json:"active"`
}

type switchCategoryRequest struct {
	Category string `json:"category"`
}

func (a *App) Categories(w http.ResponseWriter, r *http.Request) {
	st, err := a.Session.Status(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	states := make(map[domain.Category]domain.UploadState, len(st.Categories))
	for _, c := range st.Categories {
		states[c.Category] = c.State
	}
	rosters := a.Session.Rosters()
	items := make([]categoryView, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		state, ok := states[c]
		if !ok {
			state = domain.UploadUnknown
		}
		donors := rosters.Names(c)
		if donors == nil {
			donors = []string{}
		}
		items = append(items, categoryView{
			Key:    c,
			Label:  c.Label(),
			Donors: donors,
			State:  state,
			Active: c == st.ActiveCategory,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// SwitchCategory selects the active category. Drafts of the previous one are discarded.
func (a *App) SwitchCategory(w http.ResponseWriter, r *http.Request) {
	var req switchCategoryRequest
	if !a.decode(w, r, &req) {
		return
	}
	cat, err := domain.ParseCategory(req.Category)
	if err != nil {
		a.error(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	state, err := a.Session.SwitchCategory(r.Context(), cat)
	body := map[string]any{"category": cat, "label": cat.Label(), "upload_state": state}
	if state.State == domain.UploadLocked {
		body["message"] = a.lockedMessage(r, cat)
	}
	if err != nil {
		// The state is still usable; the remote check failed and the fallback applied.
		a.Logger.Warn().Err(err).Str("category", string(cat)).Msg("upload state refresh failed")
		body["warning"] = err.Error()
	}
	a.json(w, http.StatusOK, body)
}
