package event

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-events-app/internal/auth"
	"github.com/redmonkez12/go-events-app/internal/httputil"
	"github.com/redmonkez12/go-events-app/internal/logging"
)

type apiFixture struct {
	store  *memoryStore
	router chi.Router
}

// newAPIFixture serves the event routes with the user taken from the X-Test-User header
func newAPIFixture() *apiFixture {
	store := newMemoryStore()
	h := NewHandler(NewService(store, logging.Discard()))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := uuid.Parse(r.Header.Get("X-Test-User")); err == nil {
				r = r.WithContext(auth.WithUser(r.Context(), id, "jane@example.com"))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/events", h.Routes)

	return &apiFixture{store: store, router: r}
}

func (f *apiFixture) do(t *testing.T, user uuid.UUID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) create(t *testing.T, user uuid.UUID, body string) Event {
	t.Helper()
	rec := f.do(t, user, http.MethodPost, "/events", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateEventHandler(t *testing.T) {
	f := newAPIFixture()
	owner := uuid.New()

	e := f.create(t, owner, `{"title":"Sync","members":"Jane","messages":"hi","datetime":"2025-03-01T10:00:00Z"}`)
	assert.Equal(t, "Sync", e.Title)
	assert.Equal(t, owner, e.UserID)
	assert.Equal(t, 10, e.Datetime.Hour())

	dateOnly := f.create(t, owner, `{"title":"Trip","members":"All","datetime":"2025-03-02"}`)
	assert.Equal(t, "", dateOnly.Messages)
	assert.Equal(t, 0, dateOnly.Datetime.Hour())

	rec := f.do(t, owner, http.MethodPost, "/events", `{"title":"Sync","members":"Jane","datetime":"2025-03-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId":"`+owner.String()+`"`)
}

func TestCreateEventHandlerValidation(t *testing.T) {
	f := newAPIFixture()
	owner := uuid.New()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing title", `{"members":"Jane","datetime":"2025-03-01"}`, "title"},
		{"blank members", `{"title":"Sync","members":"  ","datetime":"2025-03-01"}`, "members"},
		{"bad datetime", `{"title":"Sync","members":"Jane","datetime":"next tuesday"}`, "datetime"},
		{"tags only title", `{"title":"<p></p>","members":"Jane","datetime":"2025-03-01"}`, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, owner, http.MethodPost, "/events", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeEnvelope(t, rec)
			require.NotEmpty(t, body.Errors)
			assert.Equal(t, tt.field, body.Errors[0].Field)
		})
	}
	assert.Equal(t, 0, f.store.writes)
}

func TestEventHandlerRequiresUser(t *testing.T) {
	f := newAPIFixture()
	rec := f.do(t, uuid.Nil, http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFindEventsHandler(t *testing.T) {
	f := newAPIFixture()
	owner := uuid.New()

	rec := f.do(t, owner, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	f.create(t, owner, `{"title":"Late","members":"m","datetime":"2025-03-20T09:00:00Z"}`)
	f.create(t, owner, `{"title":"Early","members":"m","datetime":"2025-03-05T09:00:00Z"}`)
	f.create(t, uuid.New(), `{"title":"Foreign","members":"m","datetime":"2025-03-06T09:00:00Z"}`)

	rec = f.do(t, owner, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "Early", events[0].Title)
	assert.Equal(t, "Late", events[1].Title)

	rec = f.do(t, owner, http.MethodGet, "/events?from=2025-03-10&to=2025-04-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Late", events[0].Title)

	rec = f.do(t, owner, http.MethodGet, "/events?from=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFindOneEventHandler(t *testing.T) {
	f := newAPIFixture()
	owner := uuid.New()
	e := f.create(t, owner, `{"title":"Sync","members":"Jane","datetime":"2025-03-01T10:00:00Z"}`)

	rec := f.do(t, owner, http.MethodGet, "/events/"+e.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, uuid.New(), http.MethodGet, "/events/"+e.ID.String(), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "You do not have permission to access this event", body.Message)
	assert.Equal(t, "Forbidden", body.Error)

	missing := uuid.New()
	rec = f.do(t, owner, http.MethodGet, "/events/"+missing.String(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Event with ID "+missing.String()+" not found", decodeEnvelope(t, rec).Message)

	rec = f.do(t, owner, http.MethodGet, "/events/not-a-uuid", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Event with ID not-a-uuid not found", decodeEnvelope(t, rec).Message)
}

func TestUpdateEventHandler(t *testing.T) {
	f := newAPIFixture()
	owner := uuid.New()
	e := f.create(t, owner, `{"title":"Sync","members":"Jane","messages":"hi","datetime":"2025-03-01T10:00:00Z"}`)
	path := "/events/" + e.ID.String()

	rec := f.do(t, owner, http.MethodPatch, path, `{"title":"Retro","datetime":"2025-03-04T15:30:00+01:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Retro", updated.Title)
	assert.Equal(t, "Jane", updated.Members)
	assert.Equal(t, 14, updated.Datetime.UTC().Hour())

	rec = f.do(t, owner, http.MethodPatch, path, `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, owner, http.MethodPatch, path, `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, owner, http.MethodPatch, path, `{"datetime":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	writes := f.store.writes
	rec = f.do(t, uuid.New(), http.MethodPatch, path, `{"title":"Hijacked"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, writes, f.store.writes)
}

func TestRemoveEventHandler(t *testing.T) {
	f := newAPIFixture()
	owner := uuid.New()
	e := f.create(t, owner, `{"title":"Sync","members":"Jane","datetime":"2025-03-01T10:00:00Z"}`)
	path := "/events/" + e.ID.String()

	rec := f.do(t, uuid.New(), http.MethodDelete, path, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, owner, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Event successfully deleted"}`, rec.Body.String())

	rec = f.do(t, owner, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
