package handlers

import (
	"net/http"

	"jimpitan/internal/domain"
)

type submitResponse struct {
	Outcome domain.SubmitOutcome `json:"outcome"`
	Message string               `json:"message"`
	Error   string               `json:"error,omitempty"`
}

// Submit uploads the drafts of the active category. Errors raised before any write
// use the regular error body; everything else reports the outcome.
func (a *App) Submit(w http.ResponseWriter, r *http.Request) {
	out, err := a.Session.Submit(r.Context())
	if err != nil && out.Kind == domain.OutcomeFailed && out.Attempted == 0 {
		a.fail(w, r, err)
		return
	}

	resp := submitResponse{Outcome: out, Message: a.Translator.Outcome(a.locale(r), out)}
	if out.Failed == nil {
		resp.Outcome.Failed = []domain.ItemFailure{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	a.json(w, outcomeStatus(out.Kind), resp)
}

func outcomeStatus(kind domain.OutcomeKind) int {
	switch kind {
	case domain.OutcomeUploaded:
		return http.StatusOK
	case domain.OutcomeSavedOffline:
		return http.StatusAccepted
	case domain.OutcomePartial:
		return http.StatusMultiStatus
	case domain.OutcomeLocked:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
