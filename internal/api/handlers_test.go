package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-engine/internal/engagement"
	"github.com/ignite/outreach-engine/internal/store"
)

func setupTestHandlers(t *testing.T) (*chi.Mux, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	h := NewHandlers(store.NewStore(db), engagement.NewAnalyzer(0.3))
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.Routes(r)
	})
	return r, mock, func() { db.Close() }
}

func doJSON(t *testing.T, router *chi.Mux, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleCreateLead(t *testing.T) {
	router, mock, cleanup := setupTestHandlers(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO outreach_leads").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(t, router, "POST", "/api/leads", map[string]string{
		"email":      "jane@acme.com",
		"first_name": "Jane",
		"company":    "Acme",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var lead store.Lead
	require.NoError(t, json.NewDecoder(w.Body).Decode(&lead))
	assert.Equal(t, "jane@acme.com", lead.Email)
	assert.NotEqual(t, uuid.Nil, lead.ID)
}

func TestHandleCreateLeadMissingEmail(t *testing.T) {
	router, _, cleanup := setupTestHandlers(t)
	defer cleanup()

	w := doJSON(t, router, "POST", "/api/leads", map[string]string{"first_name": "Jane"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetLeadNotFound(t *testing.T) {
	router, mock, cleanup := setupTestHandlers(t)
	defer cleanup()

	id := uuid.New()
	mock.ExpectQuery("SELECT id, email").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	w := doJSON(t, router, "GET", "/api/leads/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleEnrollConflict(t *testing.T) {
	router, mock, cleanup := setupTestHandlers(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO outreach_enrollments").
		WillReturnError(&pq.Error{Code: "23505"})

	w := doJSON(t, router, "POST", "/api/sequences/"+uuid.New().String()+"/enroll",
		map[string]string{"lead_id": uuid.New().String()})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleEnroll(t *testing.T) {
	router, mock, cleanup := setupTestHandlers(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO outreach_enrollments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(t, router, "POST", "/api/sequences/"+uuid.New().String()+"/enroll",
		map[string]string{"lead_id": uuid.New().String()})
	assert.Equal(t, http.StatusCreated, w.Code)

	var e store.Enrollment
	require.NoError(t, json.NewDecoder(w.Body).Decode(&e))
	assert.Equal(t, 1, e.CurrentStep)
	assert.Equal(t, store.EnrollmentActive, e.Status)
}

func TestHandleListDueEnrollments(t *testing.T) {
	router, mock, cleanup := setupTestHandlers(t)
	defer cleanup()

	enrollmentID := uuid.New()
	now := time.Now()
	mock.ExpectQuery("FROM outreach_enrollments").
		WithArgs(store.EnrollmentActive, sqlmock.AnyArg(), 5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "lead_id", "sequence_id", "current_step", "status", "started_at",
			"last_sent_at", "next_send_at", "completed_at", "stop_reason", "created_at", "updated_at",
		}).AddRow(enrollmentID, uuid.New(), uuid.New(), 2, store.EnrollmentActive, now,
			nil, now, nil, nil, now, now))

	w := doJSON(t, router, "GET", "/api/enrollments/due?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var due []*store.Enrollment
	require.NoError(t, json.NewDecoder(w.Body).Decode(&due))
	require.Len(t, due, 1)
	assert.Equal(t, enrollmentID, due[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleListDueEnrollmentsBadLimit(t *testing.T) {
	router, _, cleanup := setupTestHandlers(t)
	defer cleanup()

	w := doJSON(t, router, "GET", "/api/enrollments/due?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCreateStepValidation(t *testing.T) {
	router, _, cleanup := setupTestHandlers(t)
	defer cleanup()

	path := "/api/sequences/" + uuid.New().String() + "/steps"

	w := doJSON(t, router, "POST", path, map[string]interface{}{"step_number": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", path, map[string]interface{}{
		"step_number": 1,
		"delay_days":  -1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetAnalysisUnknownTracking(t *testing.T) {
	router, mock, cleanup := setupTestHandlers(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, enrollment_id").
		WithArgs("deadbeef").
		WillReturnError(sql.ErrNoRows)

	w := doJSON(t, router, "GET", "/api/analysis/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDailyStatsBadDate(t *testing.T) {
	router, _, cleanup := setupTestHandlers(t)
	defer cleanup()

	w := doJSON(t, router, "GET", "/api/stats/daily?date=junk", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
