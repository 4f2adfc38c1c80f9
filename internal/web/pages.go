package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/go-events-app/internal/auth"
	"github.com/redmonkez12/go-events-app/internal/event"
	"github.com/redmonkez12/go-events-app/internal/httputil"
	"github.com/redmonkez12/go-events-app/internal/ratelimit"
	"github.com/redmonkez12/go-events-app/internal/user"
)

// datetime-local inputs submit minutes, sometimes seconds, and no zone
var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05"}

const formDatetimeLayout = "2006-01-02T15:04"

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetUserIDFromContext(r.Context()); ok {
		redirect(w, r, "/")
		return
	}

	p := page{Title: "Sign in"}
	if r.URL.Query().Has("logged_out") {
		p.Flash = "You have been logged out."
	}
	h.render(w, r, http.StatusOK, "login.html", p)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, ratelimit.PurposeLogin) {
		return
	}

	form := formValues{Email: strings.TrimSpace(r.PostFormValue("email"))}
	password := r.PostFormValue("password")

	session, err := h.auth.Login(r.Context(), form.Email, password)
	if err != nil {
		p := page{Title: "Sign in", Form: form}
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			status, p.Error = http.StatusUnauthorized, "Invalid credentials"
		case errors.Is(err, auth.ErrEmailNotVerified):
			status, p.Error = http.StatusForbidden, "Email not verified. Please check your email inbox."
		default:
			h.log(r).Error("web login failed", "error", err.Error())
			p.Error = "Something went wrong, please try again"
		}
		h.render(w, r, status, "login.html", p)
		return
	}

	h.setSession(w, session)
	redirect(w, r, "/")
}

func (h *Handler) registerPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetUserIDFromContext(r.Context()); ok {
		redirect(w, r, "/")
		return
	}
	h.render(w, r, http.StatusOK, "register.html", page{Title: "Register"})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, ratelimit.PurposeRegister) {
		return
	}

	req := auth.RegisterRequest{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Name:     r.PostFormValue("name"),
	}
	p := page{Title: "Register", Form: formValues{Email: req.Email, Name: req.Name}}

	if err := httputil.ValidateStruct(&req); err != nil {
		p.FieldErrors = fieldErrors(err)
		h.render(w, r, http.StatusBadRequest, "register.html", p)
		return
	}

	u, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			p.Error = "User with this email already exists"
			h.render(w, r, http.StatusConflict, "register.html", p)
			return
		}
		h.log(r).Error("web registration failed", "error", err.Error())
		p.Error = "Something went wrong, please try again"
		h.render(w, r, http.StatusInternalServerError, "register.html", p)
		return
	}

	h.log(r).Info("user registered from web", "user_id", u.ID)
	h.render(w, r, http.StatusOK, "check_email.html", page{Title: "Check your email", Email: u.Email})
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	p := page{Title: "Email verification"}
	if token == "" {
		p.Error = "Invalid verification token"
		h.render(w, r, http.StatusBadRequest, "verify_email.html", p)
		return
	}

	session, err := h.auth.VerifyEmail(r.Context(), token)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, auth.ErrInvalidVerificationToken):
			p.Error = "Invalid verification token"
		case errors.Is(err, auth.ErrTokenExpired):
			p.Error = "Verification token has expired"
		default:
			h.log(r).Error("web email verification failed", "error", err.Error())
			status, p.Error = http.StatusInternalServerError, "Something went wrong, please try again"
		}
		h.render(w, r, status, "verify_email.html", p)
		return
	}

	h.setSession(w, session)
	redirect(w, r, "/")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken, err := auth.GetRefreshTokenFromCookie(r); err == nil {
		if err := h.auth.RevokeRefreshToken(r.Context(), refreshToken); err != nil {
			h.log(r).Warn("failed to revoke refresh token on logout", "error", err.Error())
		}
	}
	auth.ClearAuthCookies(w)
	redirect(w, r, "/login?logged_out=1")
}

// home shows the month grid and the events of the selected day, or of the
// whole month when no day is selected
func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	q := r.URL.Query()

	month := parseMonth(q.Get("month"), now)
	selected := ""
	if d, err := time.Parse(dateLayout, q.Get("date")); err == nil {
		selected = d.Format(dateLayout)
		if q.Get("month") == "" {
			month = time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
	}

	grid := BuildCalendar(month, now, nil, selected)
	from, to := grid.Start(), grid.End()

	events, err := h.events.FindAll(r.Context(), currentUserID(r), event.ListFilter{From: &from, To: &to})
	if err != nil {
		h.log(r).Error("failed to list events", "error", err.Error())
		h.renderError(w, r, http.StatusInternalServerError, "Could not load your events")
		return
	}

	days := make(map[string]bool, len(events))
	for _, e := range events {
		days[e.Datetime.UTC().Format(dateLayout)] = true
	}
	grid = BuildCalendar(month, now, days, selected)

	shown := make([]*event.Event, 0, len(events))
	for _, e := range events {
		dt := e.Datetime.UTC()
		if selected != "" {
			if dt.Format(dateLayout) == selected {
				shown = append(shown, e)
			}
			continue
		}
		if dt.Year() == month.Year() && dt.Month() == month.Month() {
			shown = append(shown, e)
		}
	}

	h.render(w, r, http.StatusOK, "home.html", page{
		Title:        "Home",
		Nav:          "home",
		Calendar:     grid,
		Events:       shown,
		SelectedDate: selected,
	})
}

func (h *Handler) addPage(w http.ResponseWriter, r *http.Request) {
	form := formValues{}
	if d, err := time.Parse(dateLayout, r.URL.Query().Get("date")); err == nil {
		form.Datetime = d.Add(9 * time.Hour).Format(formDatetimeLayout)
	}
	h.render(w, r, http.StatusOK, "event_form.html", page{Title: "New event", Nav: "add", Action: "/add", Form: form})
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	form := eventForm(r)
	p := page{Title: "New event", Nav: "add", Action: "/add", Form: form}

	dt, err := validateEventForm(form)
	if err != nil {
		p.FieldErrors = fieldErrors(err)
		h.render(w, r, http.StatusBadRequest, "event_form.html", p)
		return
	}

	e, err := h.events.Create(r.Context(), currentUserID(r), event.NewEvent{
		Title:    form.Title,
		Members:  form.Members,
		Messages: form.Messages,
		Datetime: dt,
	})
	if err != nil {
		h.eventFormError(w, r, p, uuid.Nil, err)
		return
	}

	redirect(w, r, "/?date="+e.Datetime.UTC().Format(dateLayout))
}

func (h *Handler) editPage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	e, err := h.events.FindOne(r.Context(), id, currentUserID(r))
	if err != nil {
		h.eventError(w, r, id, err)
		return
	}

	h.render(w, r, http.StatusOK, "event_form.html", page{
		Title:   "Edit event",
		Action:  "/events/" + id.String() + "/edit",
		EventID: id.String(),
		Form: formValues{
			Title:    e.Title,
			Members:  e.Members,
			Messages: e.Messages,
			Datetime: e.Datetime.UTC().Format(formDatetimeLayout),
		},
	})
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	form := eventForm(r)
	p := page{
		Title:   "Edit event",
		Action:  "/events/" + id.String() + "/edit",
		EventID: id.String(),
		Form:    form,
	}

	dt, err := validateEventForm(form)
	if err != nil {
		p.FieldErrors = fieldErrors(err)
		h.render(w, r, http.StatusBadRequest, "event_form.html", p)
		return
	}

	e, err := h.events.Update(r.Context(), id, currentUserID(r), event.Patch{
		Title:    &form.Title,
		Members:  &form.Members,
		Messages: &form.Messages,
		Datetime: &dt,
	})
	if err != nil {
		h.eventFormError(w, r, p, id, err)
		return
	}

	redirect(w, r, "/?date="+e.Datetime.UTC().Format(dateLayout))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.eventID(w, r)
	if !ok {
		return
	}

	if err := h.events.Remove(r.Context(), id, currentUserID(r)); err != nil {
		h.eventError(w, r, id, err)
		return
	}
	redirect(w, r, "/")
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.ValidateUser(r.Context(), currentUserID(r))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			auth.ClearAuthCookies(w)
			redirect(w, r, "/login")
			return
		}
		h.log(r).Error("failed to load profile", "error", err.Error())
		h.renderError(w, r, http.StatusInternalServerError, "Could not load your profile")
		return
	}

	h.render(w, r, http.StatusOK, "profile.html", page{Title: "Profile", Nav: "profile", Profile: u.Public()})
}

// eventID parses the {id} path parameter; anything but a UUID is a missing event
func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.renderError(w, r, http.StatusNotFound, fmt.Sprintf("Event with ID %s not found", raw))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) eventError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, event.ErrNotFound):
		h.renderError(w, r, http.StatusNotFound, fmt.Sprintf("Event with ID %s not found", id))
	case errors.Is(err, event.ErrForbidden):
		h.renderError(w, r, http.StatusForbidden, "You do not have permission to access this event")
	default:
		h.log(r).Error("event operation failed", "event_id", id, "error", err.Error())
		h.renderError(w, r, http.StatusInternalServerError, "Something went wrong, please try again")
	}
}

// eventFormError re-renders the form for validation failures and falls back to eventError
func (h *Handler) eventFormError(w http.ResponseWriter, r *http.Request, p page, id uuid.UUID, err error) {
	var verr *httputil.ValidationError
	if errors.As(err, &verr) {
		p.FieldErrors = fieldErrors(verr)
		h.render(w, r, http.StatusBadRequest, "event_form.html", p)
		return
	}
	h.eventError(w, r, id, err)
}

func eventForm(r *http.Request) formValues {
	return formValues{
		Title:    r.PostFormValue("title"),
		Members:  r.PostFormValue("members"),
		Messages: r.PostFormValue("messages"),
		Datetime: strings.TrimSpace(r.PostFormValue("datetime")),
	}
}

// validateEventForm applies the API's create constraints to the form and
// returns the parsed datetime
func validateEventForm(form formValues) (time.Time, error) {
	dt, ok := parseFormDatetime(form.Datetime)

	req := event.CreateEventRequest{
		Title:    form.Title,
		Members:  form.Members,
		Messages: form.Messages,
		Datetime: form.Datetime,
	}
	if ok {
		req.Datetime = dt.Format(time.RFC3339)
	}
	if err := httputil.ValidateStruct(&req); err != nil {
		return time.Time{}, err
	}
	return dt, nil
}

// parseFormDatetime reads a datetime-local value as UTC, falling back to the
// formats the API accepts
func parseFormDatetime(s string) (time.Time, bool) {
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	if t, err := httputil.ParseDateTime(s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// fieldErrors maps a validation error to the first message per field
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verr *httputil.ValidationError
	if !errors.As(err, &verr) {
		out["form"] = err.Error()
		return out
	}
	for _, f := range verr.Fields {
		if _, seen := out[f.Field]; !seen {
			out[f.Field] = f.Message
		}
	}
	return out
}
