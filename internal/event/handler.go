package event

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/go-events-app/internal/auth"
	"github.com/redmonkez12/go-events-app/internal/httputil"
	"github.com/redmonkez12/go-events-app/internal/logging"
)

// Handler contains HTTP handlers for event endpoints
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateEventRequest is the body of POST /events
type CreateEventRequest struct {
	Title    string `json:"title" validate:"notblank,max=255" example:"Team sync"`
	Members  string `json:"members" validate:"notblank,max=1000" example:"Jane, John"`
	Messages string `json:"messages" validate:"max=5000" example:"Bring the slides"`
	Datetime string `json:"datetime" validate:"required,isodatetime" example:"2025-03-01T10:00:00Z"`
}

// UpdateEventRequest is the body of PATCH /events/{id}; omitted fields are unchanged
type UpdateEventRequest struct {
	Title    *string `json:"title" validate:"omitnil,notblank,max=255"`
	Members  *string `json:"members" validate:"omitnil,notblank,max=1000"`
	Messages *string `json:"messages" validate:"omitnil,max=5000"`
	Datetime *string `json:"datetime" validate:"omitnil,isodatetime"`
}

// Routes mounts the event endpoints; the caller applies authentication
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.FindAll)
	r.Get("/{id}", h.FindOne)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Remove)
}

// Create handles event creation
// @Summary      Create an event
// @Tags         events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateEventRequest true "Event"
// @Success      201 {object} Event
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Router       /events [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateEventRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondDecodeError(w, r, err)
		return
	}

	// validated by the isodatetime tag
	datetime, _ := httputil.ParseDateTime(req.Datetime)

	e, err := h.service.Create(r.Context(), userID, NewEvent{
		Title:    req.Title,
		Members:  req.Members,
		Messages: req.Messages,
		Datetime: datetime,
	})
	if err != nil {
		h.respondError(w, r, uuid.Nil, err)
		return
	}

	httputil.RespondJSON(w, e, http.StatusCreated)
}

// FindAll lists the caller's events
// @Summary      List events
// @Description  Events of the current user ordered by datetime ascending
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        from query string false "Inclusive lower datetime bound (RFC 3339)"
// @Param        to   query string false "Exclusive upper datetime bound (RFC 3339)"
// @Success      200 {array} Event
// @Failure      400 {object} httputil.ErrorResponse "Invalid range"
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Router       /events [get]
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var filter ListFilter
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		t, err := httputil.ParseDateTime(raw)
		if err != nil {
			httputil.RespondValidationError(w, r, []httputil.FieldError{{
				Field:      name,
				Message:    name + " must be a valid ISO 8601 date string",
				Constraint: "isodatetime",
			}})
			return
		}
		*dst = &t
	}

	events, err := h.service.FindAll(r.Context(), userID, filter)
	if err != nil {
		h.respondError(w, r, uuid.Nil, err)
		return
	}

	httputil.RespondJSON(w, events, http.StatusOK)
}

// FindOne returns a single event
// @Summary      Get an event
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Event ID"
// @Success      200 {object} Event
// @Failure      403 {object} httputil.ErrorResponse "Not the owner"
// @Failure      404 {object} httputil.ErrorResponse "Not found"
// @Router       /events/{id} [get]
func (h *Handler) FindOne(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	e, err := h.service.FindOne(r.Context(), id, userID)
	if err != nil {
		h.respondError(w, r, id, err)
		return
	}

	httputil.RespondJSON(w, e, http.StatusOK)
}

// Update applies a partial update
// @Summary      Update an event
// @Tags         events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Event ID"
// @Param        request body UpdateEventRequest true "Fields to change"
// @Success      200 {object} Event
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      403 {object} httputil.ErrorResponse "Not the owner"
// @Failure      404 {object} httputil.ErrorResponse "Not found"
// @Router       /events/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	var req UpdateEventRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.RespondDecodeError(w, r, err)
		return
	}

	patch := Patch{Title: req.Title, Members: req.Members, Messages: req.Messages}
	if req.Datetime != nil {
		datetime, _ := httputil.ParseDateTime(*req.Datetime)
		patch.Datetime = &datetime
	}

	e, err := h.service.Update(r.Context(), id, userID, patch)
	if err != nil {
		h.respondError(w, r, id, err)
		return
	}

	httputil.RespondJSON(w, e, http.StatusOK)
}

// Remove deletes an event
// @Summary      Delete an event
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Event ID"
// @Success      200 {object} httputil.MessageResponse
// @Failure      403 {object} httputil.ErrorResponse "Not the owner"
// @Failure      404 {object} httputil.ErrorResponse "Not found"
// @Router       /events/{id} [delete]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := eventID(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), id, userID); err != nil {
		h.respondError(w, r, id, err)
		return
	}

	httputil.RespondMessage(w, "Event successfully deleted", http.StatusOK)
}

// respondError maps service errors onto the envelope
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	var verr *httputil.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.RespondValidationError(w, r, verr.Fields)
	case errors.Is(err, ErrNotFound):
		respondNotFound(w, r, id.String())
	case errors.Is(err, ErrForbidden):
		logging.GetLoggerFromContext(r.Context()).Warn("event access denied", "event_id", id)
		httputil.RespondErrorWithCode(w, r, "You do not have permission to access this event", httputil.CodeEventForbidden, http.StatusForbidden)
	default:
		logging.GetLoggerFromContext(r.Context()).Error("event operation failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, r, "Internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

func respondNotFound(w http.ResponseWriter, r *http.Request, id string) {
	httputil.RespondErrorWithCode(w, r, fmt.Sprintf("Event with ID %s not found", id), httputil.CodeEventNotFound, http.StatusNotFound)
}

// eventID parses the {id} path parameter; a malformed id is reported as not found
func eventID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		respondNotFound(w, r, raw)
		return uuid.Nil, false
	}
	return id, true
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, r, "Unauthorized", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}
