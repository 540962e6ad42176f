package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/quake-feed-service/internal/controller"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// Session is the controller surface the API drives.
type Session interface {
	View() controller.View
	SelectTimeWindow(ctx context.Context, w domain.TimeWindow) error
	SelectThreshold(ctx context.Context, th domain.MagnitudeThreshold) error
	Refresh(ctx context.Context) error
}

// filterRequest is the PUT /api/v1/filters body. Either field may be omitted.
type filterRequest struct {
	TimeWindow string `json:"time_window" validate:"omitempty,time_window"`
	Magnitude  string `json:"magnitude" validate:"omitempty,magnitude_threshold"`
}

type api struct {
	session  Session
	validate *validator.Validate
	logger   *slog.Logger
}

func newAPI(session Session, logger *slog.Logger) *api {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("time_window", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseTimeWindow(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("magnitude_threshold", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseMagnitudeThreshold(fl.Field().String())
		return err == nil
	})
	return &api{session: session, validate: v, logger: logger}
}

func (a *api) routes(r chi.Router) {
	r.Get("/view", a.handleView)
	r.Get("/markers", a.handleMarkers)
	r.Put("/filters", a.handleFilters)
	r.Post("/refresh", a.handleRefresh)
}

func (a *api) handleView(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, a.session.View())
}

func (a *api) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, a.session.View().Markers)
}

func (a *api) handleFilters(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.TimeWindow == "" && req.Magnitude == "" {
		writeError(w, http.StatusBadRequest, "time_window or magnitude is required")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	// Threshold goes first so the view published with the new window's
	// loading state already carries the new filter.
	if req.Magnitude != "" {
		th, _ := domain.ParseMagnitudeThreshold(req.Magnitude)
		if err := a.session.SelectThreshold(r.Context(), th); err != nil {
			a.writePostError(w, err)
			return
		}
	}
	if req.TimeWindow != "" {
		tw, _ := domain.ParseTimeWindow(req.TimeWindow)
		if err := a.session.SelectTimeWindow(r.Context(), tw); err != nil {
			a.writePostError(w, err)
			return
		}
	}
	sharedobs.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := a.session.Refresh(r.Context()); err != nil {
		a.writePostError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *api) writePostError(w http.ResponseWriter, err error) {
	if errors.Is(err, controller.ErrStopped) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	a.logger.Warn("session update failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "time_window":
		return "time_window must be one of hour, day, week, month"
	case "magnitude_threshold":
		return "magnitude must be all or 4+"
	default:
		return fe.Error()
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
