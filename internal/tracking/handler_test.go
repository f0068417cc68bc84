package tracking

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/outreach-engine/internal/store"
)

func setupTestHandler(t *testing.T) (*chi.Mux, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	st := store.NewStore(db)
	recorder := NewRecorder(st, func(signals []store.Signal) *store.OpenAnalysis {
		return &store.OpenAnalysis{TotalSignals: len(signals)}
	})
	h := NewHandler(recorder, st, "test-key")

	r := chi.NewRouter()
	h.Routes(r)
	return r, mock, func() { db.Close() }
}

func TestHandleSignalUnknownTokenStillServesPixel(t *testing.T) {
	router, mock, cleanup := setupTestHandler(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, enrollment_id, step_id, tracking_id").
		WithArgs("deadbeef").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest("GET", "/track/signal/deadbeef/primary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/gif" {
		t.Errorf("content type = %q, want image/gif", ct)
	}
	if w.Body.Len() != len(pixelGIF) {
		t.Errorf("body length = %d, want %d", w.Body.Len(), len(pixelGIF))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleSignalInvalidTypeServesPixelWithoutRecording(t *testing.T) {
	router, mock, cleanup := setupTestHandler(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/track/signal/deadbeef/bogus", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("invalid signal type should not touch storage: %v", err)
	}
}

func TestHandleClickUnknownTokenRedirectsToDestination(t *testing.T) {
	router, mock, cleanup := setupTestHandler(t)
	defer cleanup()

	// Signal recording fails on the unknown token, the click counter
	// finds no row, and the redirect still happens.
	mock.ExpectQuery("SELECT id, enrollment_id, step_id, tracking_id").
		WithArgs("deadbeef").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE outreach_messages SET clicks").
		WithArgs("deadbeef").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	req := httptest.NewRequest("GET", "/track/click/deadbeef?url=https%3A%2F%2Fexample.com%2Fpricing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://example.com/pricing" {
		t.Errorf("location = %q", loc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleClickRejectsNonHTTPDestination(t *testing.T) {
	router, mock, cleanup := setupTestHandler(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, enrollment_id, step_id, tracking_id").
		WithArgs("deadbeef").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE outreach_messages SET clicks").
		WithArgs("deadbeef").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	req := httptest.NewRequest("GET", "/track/click/deadbeef?url=javascript%3Aalert(1)", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if loc := w.Header().Get("Location"); loc != "/track/view/deadbeef" {
		t.Errorf("location = %q, want fallback to browser view", loc)
	}
}

func messageRow(trackingID, subject, content string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "enrollment_id", "step_id", "tracking_id", "status", "subject", "content",
		"screen_score", "sent_at", "opens", "clicks", "created_at",
	}).AddRow(uuid.New(), uuid.New(), uuid.New(), trackingID, store.MessageSent, subject, content,
		1.0, now, 0, 0, now)
}

func TestHandleViewEscapesContent(t *testing.T) {
	router, mock, cleanup := setupTestHandler(t)
	defer cleanup()

	subject := `<script>alert(1)</script>`
	content := "Hi <b>Jane</b> & co"

	// Signal recording walks the full append-and-recompute path.
	mock.ExpectQuery("SELECT id, enrollment_id, step_id, tracking_id").
		WithArgs("cafebabe").
		WillReturnRows(messageRow("cafebabe", subject, content))
	mock.ExpectExec("INSERT INTO outreach_tracking_signals").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outreach_open_analysis").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT is_opened FROM outreach_open_analysis").
		WillReturnRows(sqlmock.NewRows([]string{"is_opened"}).AddRow(false))
	mock.ExpectQuery("FROM outreach_tracking_signals").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tracking_id", "signal_type", "confidence", "ip_address", "user_agent",
			"referer", "delay_seconds", "is_prefetch", "recorded_at",
		}))
	mock.ExpectExec("UPDATE outreach_open_analysis").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, enrollment_id, step_id, tracking_id").
		WithArgs("cafebabe").
		WillReturnRows(messageRow("cafebabe", subject, content))

	req := httptest.NewRequest("GET", "/track/view/cafebabe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("subject markup rendered unescaped")
	}
	if !strings.Contains(body, "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Errorf("escaped subject missing from body: %q", body)
	}
	if !strings.Contains(body, "Hi &lt;b&gt;Jane&lt;/b&gt; &amp; co") {
		t.Errorf("escaped content missing from body: %q", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleUnsubscribe(t *testing.T) {
	router, mock, cleanup := setupTestHandler(t)
	defer cleanup()

	leadID := uuid.New()
	token := SignToken("test-key", leadID.String())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE outreach_leads SET status = 'unsubscribed'").
		WithArgs(leadID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE outreach_enrollments SET status").
		WithArgs(store.EnrollmentStopped, leadID, store.EnrollmentActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest("GET", "/unsubscribe/"+leadID.String()+"?token="+token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleUnsubscribeBadToken(t *testing.T) {
	router, mock, cleanup := setupTestHandler(t)
	defer cleanup()

	leadID := uuid.New()
	req := httptest.NewRequest("GET", "/unsubscribe/"+leadID.String()+"?token=forged", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("forged token should not touch storage: %v", err)
	}
}
