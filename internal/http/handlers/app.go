package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"jimpitan/internal/domain"
	"jimpitan/internal/i18n"
	"jimpitan/internal/infra"
	"jimpitan/internal/middleware"
	"jimpitan/internal/session"
	"jimpitan/internal/submission"
)

type App struct {
	Session    *session.Session
	Translator *i18n.Translator
	Logger     *infra.Logger
}

func NewApp(sess *session.Session, tr *i18n.Translator, logger *infra.Logger) *App {
	if tr == nil {
		tr = i18n.New("id")
	}
	return &App{Session: sess, Translator: tr, Logger: infra.LoggerOrDiscard(logger)}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: code, Message: message})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

func (a *App) locale(r *http.Request) string {
	return middleware.LocaleFromContext(r.Context())
}

// fail maps err onto a status code and a localized message where one exists.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := a.describe(a.locale(r), err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("handler failed")
	}
	a.error(w, status, code, message)
}

func (a *App) describe(locale string, err error) (int, string, string) {
	var (
		vErr       *domain.ValidationError
		upErr      *domain.AlreadyUploadedError
		storageErr *domain.StorageError
		netErr     *domain.NetworkError
		srvErr     *domain.ServerError
		rejErr     *domain.RejectedError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyBatch):
		return http.StatusBadRequest, "empty_batch", a.Translator.Message(locale, i18n.KeyEmptyBatch)
	case errors.Is(err, submission.ErrInProgress):
		return http.StatusConflict, "in_progress", a.Translator.Message(locale, i18n.KeyInProgress)
	case errors.As(err, &upErr):
		return http.StatusConflict, "already_uploaded", a.Translator.Message(locale, i18n.KeyLocked, upErr.Category.Label())
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "validation", vErr.Error()
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError, "storage", a.Translator.Message(locale, i18n.KeyStorageFailed, storageErr.Op)
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", err.Error()
	case errors.As(err, &rejErr):
		return http.StatusUnprocessableEntity, "rejected", rejErr.Error()
	case errors.As(err, &netErr):
		return http.StatusServiceUnavailable, "network", netErr.Error()
	case errors.As(err, &srvErr):
		return http.StatusBadGateway, "upstream", srvErr.Error()
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
