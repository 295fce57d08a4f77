// Package httpapi exposes the ingestion pipeline over HTTP. Event creation
// is the write surface; everything else is read-only polling of event state.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/pulse/internal/application"
	"github.com/felixgeelhaar/pulse/internal/domain/event"
)

// Server wires the event service into a chi router through huma.
type Server struct {
	events *application.Events
	logger *slog.Logger
}

// New returns the HTTP handler for the pulse API.
func New(events *application.Events, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{events: events, logger: logger}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))

	cfg := huma.DefaultConfig("Pulse API", "1.0.0")
	api := humachi.New(router, cfg)
	group := huma.NewGroup(api, "/v1")

	registerPing(group)
	s.registerEvents(group)

	return router
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request handled",
				"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

// EventResponse is the wire shape of one load event.
type EventResponse struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	StartTime time.Time        `json:"startTime"`
	EndTime   *time.Time       `json:"endTime"`
	Since     string           `json:"since"`
	Status    string           `json:"status"`
	Note      string           `json:"note,omitempty"`
	Demand    *SystemEventBody `json:"demand"`
	Defect    *SystemEventBody `json:"defect"`
	Effort    *SystemEventBody `json:"effort"`
}

// SystemEventBody is the wire shape of one subsystem's outcome.
type SystemEventBody struct {
	Completion *time.Time `json:"completion"`
	Status     string     `json:"status"`
	Message    string     `json:"message"`
}

func eventResponse(ev *event.LoadEvent) EventResponse {
	return EventResponse{
		ID:        ev.ID,
		Type:      string(ev.Type),
		StartTime: ev.StartTime,
		EndTime:   ev.EndTime,
		Since:     ev.Since,
		Status:    string(ev.Status),
		Note:      ev.Note,
		Demand:    systemEventBody(ev.Demand),
		Defect:    systemEventBody(ev.Defect),
		Effort:    systemEventBody(ev.Effort),
	}
}

func systemEventBody(se *event.SystemEvent) *SystemEventBody {
	if se == nil {
		return nil
	}
	return &SystemEventBody{
		Completion: se.Completion,
		Status:     string(se.Status),
		Message:    se.Message,
	}
}

func registerPing(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Summary:     "Liveness check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func (s *Server) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-event",
		Method:        http.MethodPost,
		Path:          "/project/{name}/event",
		Summary:       "Start a load event",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Name     string `path:"name"`
		Type     string `query:"type" default:"LOAD"`
		Override bool   `query:"override"`
	}) (*struct {
		Location string        `header:"Location"`
		Body     EventResponse `json:"body"`
	}, error) {
		ev, err := s.events.Create(ctx, input.Name, input.Type, input.Override)
		if err != nil {
			return nil, s.mapError(err)
		}
		return &struct {
			Location string        `header:"Location"`
			Body     EventResponse `json:"body"`
		}{
			Location: fmt.Sprintf("/v1/project/%s/event/%s", input.Name, ev.ID),
			Body:     eventResponse(ev),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/project/{name}/event",
		Summary:     "List load events",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		events, err := s.events.List(ctx, input.Name)
		if err != nil {
			return nil, s.mapError(err)
		}
		if len(events) == 0 {
			return nil, huma.Error404NotFound(fmt.Sprintf("no events found for project %s", input.Name))
		}
		body := make([]EventResponse, len(events))
		for i := range events {
			body[i] = eventResponse(&events[i])
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/project/{name}/event/{id}",
		Summary:     "Get one load event",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
		ID   string `path:"id"`
	}) (*struct {
		Body EventResponse `json:"body"`
	}, error) {
		ev, err := s.events.Get(ctx, input.Name, input.ID)
		if err != nil {
			return nil, s.mapError(err)
		}
		return &struct {
			Body EventResponse `json:"body"`
		}{Body: eventResponse(ev)}, nil
	})
}

// mapError translates service errors onto the HTTP surface: unknown projects
// and events are 404, an active event is 409, bad input is 400.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, application.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, application.ErrActiveEvent):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, application.ErrInvalidEventType),
		errors.Is(err, application.ErrNotConfigured):
		return huma.Error400BadRequest(err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}
