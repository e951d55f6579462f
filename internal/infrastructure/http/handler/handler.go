// Package handler adapts HTTP requests to the planner and profile services.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/dayplan/internal/application/auth"
	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/application/profile"
	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/infrastructure/http/response"
	"github.com/rezkam/dayplan/internal/infrastructure/realtime"
)

// Subscriber delivers change signals for an owner's collection.
type Subscriber interface {
	Subscribe(ownerID string) (<-chan struct{}, realtime.UnsubscribeFunc)
}

// Config holds handler settings.
type Config struct {
	// StreamPingInterval is how often idle websocket streams are pinged.
	StreamPingInterval time.Duration
	// StreamWriteTimeout bounds a single websocket frame write.
	StreamWriteTimeout time.Duration
}

// Default handler settings.
const (
	DefaultStreamPingInterval = 30 * time.Second
	DefaultStreamWriteTimeout = 10 * time.Second
)

func (c *Config) applyDefaults() {
	if c.StreamPingInterval <= 0 {
		c.StreamPingInterval = DefaultStreamPingInterval
	}
	if c.StreamWriteTimeout <= 0 {
		c.StreamWriteTimeout = DefaultStreamWriteTimeout
	}
}

// PlanHandler serves the /v1 API.
type PlanHandler struct {
	planner  *planner.Service
	profiles *profile.Service
	changes  Subscriber
	config   Config
}

// NewPlanHandler creates a new HTTP API handler.
func NewPlanHandler(plannerService *planner.Service, profileService *profile.Service, changes Subscriber, cfg Config) *PlanHandler {
	cfg.applyDefaults()
	return &PlanHandler{
		planner:  plannerService,
		profiles: profileService,
		changes:  changes,
		config:   cfg,
	}
}

// NewRouter mounts every API route on a fresh router.
// Both production code and tests use it so routing is identical.
func NewRouter(h *PlanHandler) http.Handler {
	r := chi.NewRouter()

	r.Route("/v1", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Post("/", h.CreateItem)
			r.Get("/", h.ListItems)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetItem)
				r.Patch("/", h.UpdateItem)
				r.Delete("/", h.DeleteItem)
				r.Post("/status", h.ChangeStatus)
				r.Post("/reschedule", h.Reschedule)
			})
		})

		r.Get("/agenda", h.GetAgenda)
		r.Put("/agenda/order", h.ReorderAgenda)
		r.Get("/stats", h.GetStats)
		r.Get("/calendar.ics", h.ExportCalendar)

		r.Get("/profile", h.GetProfile)
		r.Put("/profile", h.UpdateProfile)
		r.Get("/greeting", h.GetGreeting)

		r.Get("/stream", h.Stream)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.MethodNotAllowed(w)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "route")
	})

	return r
}

// ownerOf returns the authenticated owner or writes a 401.
func ownerOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing API key")
		return "", false
	}
	return owner, true
}

// decodeJSON reads the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			response.BadRequest(w, "request body is required")
		} else {
			response.BadRequest(w, "invalid JSON")
		}
		return false
	}
	return true
}

// dateParam parses an optional YYYY-MM-DD value, falling back to today.
func (h *PlanHandler) dateParam(raw string) (domain.Date, error) {
	if raw == "" {
		return h.planner.Today(), nil
	}
	return domain.ParseDate(raw)
}

// requiredDate parses a YYYY-MM-DD value that must be present.
func requiredDate(raw string) (domain.Date, error) {
	if raw == "" {
		return "", domain.ErrDateRequired
	}
	return domain.ParseDate(raw)
}

// setEtag mirrors the item version into the ETag header.
func setEtag(w http.ResponseWriter, item *domain.Item) {
	w.Header().Set("ETag", `"`+item.Etag()+`"`)
}

// etagFrom prefers the body etag and falls back to If-Match.
func etagFrom(r *http.Request, body *string) *string {
	if body != nil {
		return body
	}
	if v := r.Header.Get("If-Match"); v != "" {
		return &v
	}
	return nil
}
