package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/checkfit/internal/auth"
	"github.com/sakif/checkfit/internal/handler"
	"github.com/sakif/checkfit/internal/model"
	"github.com/sakif/checkfit/internal/repository/sqlite"
	"github.com/sakif/checkfit/internal/service"
)

const testSecret = "handler-test-secret-0123456789"

type testEnv struct {
	db         *sqlite.DB
	auth       *handler.AuthHandler
	users      *handler.UserHandler
	activities *handler.ActivityHandler
	checkins   *handler.CheckinHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService(testSecret, "checkfit-test")
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceWithCost(4)

	return &testEnv{
		db:         db,
		auth:       handler.NewAuthHandler(service.NewAuthService(db, tokens, passwords, logger), logger),
		users:      handler.NewUserHandler(service.NewUserService(db, passwords, logger), logger),
		activities: handler.NewActivityHandler(service.NewActivityService(db, db, logger), logger),
		checkins:   handler.NewCheckinHandler(service.NewCheckinService(db, db, db, logger), logger),
	}
}

func request(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withID(req *http.Request, id string) *http.Request {
	req.SetPathValue("id", id)
	return req
}

func asMember(req *http.Request, email string) *http.Request {
	return req.WithContext(auth.WithEmail(req.Context(), email))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func userBody(n int) string {
	return fmt.Sprintf(`{"name":"Member %d","email":"member%d@example.com","phone":"119%08d","cpf":"%011d","dateBirth":"1990-05-17","password":"abc12345"}`,
		n, n, n, 10000000000+n)
}

func (e *testEnv) createActivity(t *testing.T, limit int) *model.Activity {
	t.Helper()
	now := time.Now().In(model.BusinessZone)
	body := fmt.Sprintf(`{"description":"Spinning","startTime":%q,"finishTime":%q,"limitPeople":%d}`,
		now.Add(-30*time.Minute).Format(model.DateTimeLayout),
		now.Add(time.Hour).Format(model.DateTimeLayout),
		limit)

	rr := httptest.NewRecorder()
	e.activities.HandleCreate(rr, request(http.MethodPost, "/activity", body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var a model.Activity
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&a))
	return &a
}

func (e *testEnv) register(t *testing.T, n int) {
	t.Helper()
	rr := httptest.NewRecorder()
	e.auth.HandleRegister(rr, request(http.MethodPost, "/auth/register", userBody(n)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

// =========================================================================
// AUTH
// =========================================================================

func TestAuthHandler_Register(t *testing.T) {
	env := newTestEnv(t)

	t.Run("created", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.auth.HandleRegister(rr, request(http.MethodPost, "/auth/register", userBody(1)))

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.JSONEq(t, `{"name":"Member 1"}`, rr.Body.String())
		assert.NotEmpty(t, rr.Header().Get("Location"))
	})

	t.Run("email taken", func(t *testing.T) {
		body := strings.Replace(userBody(2), "member2@", "member1@", 1)
		rr := httptest.NewRecorder()
		env.auth.HandleRegister(rr, request(http.MethodPost, "/auth/register", body))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeError(t, rr)
		assert.Equal(t, "already_registered", resp.Error)
		assert.Equal(t, "email", resp.Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.auth.HandleRegister(rr, request(http.MethodPost, "/auth/register", `{"name":`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "validation_error", decodeError(t, rr).Error)
	})

	t.Run("bad birth date", func(t *testing.T) {
		body := strings.Replace(userBody(3), "1990-05-17", "17/05/1990", 1)
		rr := httptest.NewRecorder()
		env.auth.HandleRegister(rr, request(http.MethodPost, "/auth/register", body))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, 1)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"email":"member1@example.com","password":"abc12345"}`, http.StatusOK},
		{"wrong password", `{"email":"member1@example.com","password":"abc99999"}`, http.StatusBadRequest},
		{"unknown email", `{"email":"ghost@example.com","password":"abc12345"}`, http.StatusBadRequest},
		{"empty", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.auth.HandleLogin(rr, request(http.MethodPost, "/auth/login", tt.body))
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

// =========================================================================
// USERS
// =========================================================================

func TestUserHandler_CRUD(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.users.HandleCreate(rr, request(http.MethodPost, "/users", userBody(1)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created model.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	assert.NotContains(t, rr.Body.String(), "abc12345")

	rr = httptest.NewRecorder()
	env.users.HandleGet(rr, withID(request(http.MethodGet, "/users/x", ""), created.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")

	update := strings.Replace(userBody(1), "Member 1", "Renamed", 1)
	update = strings.Replace(update, `,"password":"abc12345"`, "", 1)
	rr = httptest.NewRecorder()
	env.users.HandleUpdate(rr, withID(request(http.MethodPut, "/users/x", update), created.ID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "Renamed")

	rr = httptest.NewRecorder()
	env.users.HandleList(rr, request(http.MethodGet, "/users", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	var users []model.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
	assert.Len(t, users, 1)

	rr = httptest.NewRecorder()
	env.users.HandleDelete(rr, withID(request(http.MethodDelete, "/users/x", ""), created.ID))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	env.users.HandleDelete(rr, withID(request(http.MethodDelete, "/users/x", ""), created.ID))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, rr.Body.String())
}

// =========================================================================
// ACTIVITIES
// =========================================================================

func TestActivityHandler_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing description", `{"startTime":"10-03-2026 18:00","finishTime":"10-03-2026 19:00","limitPeople":5}`, "description"},
		{"finish before start", `{"description":"Yoga","startTime":"10-03-2026 18:00","finishTime":"10-03-2026 17:00","limitPeople":5}`, "finishTime"},
		{"no capacity", `{"description":"Yoga","startTime":"10-03-2026 18:00","finishTime":"10-03-2026 19:00","limitPeople":0}`, "limitPeople"},
		{"bad time format", `{"description":"Yoga","startTime":"2026/03/10 18h","finishTime":"10-03-2026 19:00","limitPeople":5}`, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.activities.HandleCreate(rr, request(http.MethodPost, "/activity", tt.body))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.wantField, decodeError(t, rr).Field)
		})
	}
}

func TestActivityHandler_WireFormat(t *testing.T) {
	env := newTestEnv(t)

	rr := httptest.NewRecorder()
	env.activities.HandleCreate(rr, request(http.MethodPost, "/activity",
		`{"description":"Yoga","startTime":"10-03-2026 18:00","finishTime":"10-03-2026 19:00","limitPeople":5}`))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := rr.Body.String()
	assert.Contains(t, body, `"startTime":"10-03-2026 18:00"`)
	assert.Contains(t, body, `"finishTime":"10-03-2026 19:00"`)
}

func TestActivityHandler_GetAndDelete(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t, 3)

	rr := httptest.NewRecorder()
	env.activities.HandleAvailability(rr, withID(request(http.MethodGet, "/", ""), a.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"availableSlots":3`)

	rr = httptest.NewRecorder()
	env.activities.HandleDelete(rr, withID(request(http.MethodDelete, "/", ""), a.ID))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	env.activities.HandleGet(rr, withID(request(http.MethodGet, "/", ""), a.ID))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = httptest.NewRecorder()
	env.activities.HandleDelete(rr, withID(request(http.MethodDelete, "/", ""), a.ID))
	assert.Equal(t, http.StatusNoContent, rr.Code, "deleting twice is still 204")
}

// =========================================================================
// CHECK-INS
// =========================================================================

func TestCheckinHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, 1)
	a := env.createActivity(t, 5)

	t.Run("anonymous", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.checkins.HandleCreate(rr, request(http.MethodPost, "/checkin", `{"idActivity":"`+a.ID+`"}`))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing activity id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.checkins.HandleCreate(rr, asMember(request(http.MethodPost, "/checkin", `{}`), "member1@example.com"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "idActivity", decodeError(t, rr).Field)
	})

	t.Run("unknown activity is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.checkins.HandleCreate(rr, asMember(request(http.MethodPost, "/checkin", `{"idActivity":"nope"}`), "member1@example.com"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.NotEmpty(t, decodeError(t, rr).Message)
	})

	t.Run("deleted account is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.checkins.HandleCreate(rr, asMember(request(http.MethodPost, "/checkin", `{"idActivity":"`+a.ID+`"}`), "gone@example.com"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("admitted then daily limit", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.checkins.HandleCreate(rr, asMember(request(http.MethodPost, "/checkin", `{"idActivity":"`+a.ID+`"}`), "member1@example.com"))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var result model.CheckinResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
		assert.Equal(t, a.ID, result.Current.ActivityID)

		other := env.createActivity(t, 5)
		rr = httptest.NewRecorder()
		env.checkins.HandleCreate(rr, asMember(request(http.MethodPost, "/checkin", `{"idActivity":"`+other.ID+`"}`), "member1@example.com"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		resp := decodeError(t, rr)
		assert.Equal(t, "admission_denied", resp.Error)
		assert.Equal(t, "daily_limit_exceeded", resp.Reason)
	})
}

func TestCheckinHandler_UpdateGetDelete(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, 1)
	a := env.createActivity(t, 5)

	rr := httptest.NewRecorder()
	env.checkins.HandleCreate(rr, asMember(request(http.MethodPost, "/checkin", `{"idActivity":"`+a.ID+`"}`), "member1@example.com"))
	require.Equal(t, http.StatusOK, rr.Code)
	var result model.CheckinResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	id := result.Current.ID

	rr = httptest.NewRecorder()
	env.checkins.HandleUpdate(rr, withID(request(http.MethodPut, "/", `{"checkinTime":"01-01-2020 07:30"}`), id))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"checkinTime":"01-01-2020 07:30"`)

	rr = httptest.NewRecorder()
	env.checkins.HandleUpdate(rr, withID(request(http.MethodPut, "/", `{}`), id))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	env.checkins.HandleList(rr, request(http.MethodGet, "/checkin", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	var all []model.Checkin
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&all))
	assert.Len(t, all, 1)

	rr = httptest.NewRecorder()
	env.checkins.HandleDelete(rr, withID(request(http.MethodDelete, "/", ""), id))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	env.checkins.HandleGet(rr, withID(request(http.MethodGet, "/", ""), id))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCheckinHandler_History(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, 1)

	rr := httptest.NewRecorder()
	env.checkins.HandleHistory(rr, asMember(request(http.MethodGet, "/checkin/history", ""), "member1@example.com"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

// =========================================================================
// HEALTH
// =========================================================================

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("healthy", func(t *testing.T) {
		h := handler.NewHealthHandler(newTestEnv(t).db, logger)
		rr := httptest.NewRecorder()
		h.HandleHealth(rr, request(http.MethodGet, "/healthz", ""))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("database down", func(t *testing.T) {
		h := handler.NewHealthHandler(pingFunc(func(context.Context) error {
			return errors.New("disk I/O error")
		}), logger)
		rr := httptest.NewRecorder()
		h.HandleHealth(rr, request(http.MethodGet, "/healthz", ""))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.NotContains(t, rr.Body.String(), "disk")
	})
}
