package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi/internal/attendance"
	"absensi/internal/auth"
	"absensi/internal/broadcast"
	"absensi/internal/logging"
)

const (
	signingKey = "handler-test-key"
	issuer     = "absensi"
)

type testAPI struct {
	router *gin.Engine
	engine *attendance.Engine
	hub    *broadcast.Hub
	admin  *http.Cookie
	guru   *http.Cookie
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := attendance.NewMemoryStore()
	hub := broadcast.NewHub(16, nil)
	engine := attendance.NewEngine(mem, mem, hub,
		attendance.WithCalendar(attendance.NewCalendar(time.FixedZone("WIB", 7*3600))),
	)
	users := auth.NewMemoryUsers()
	svc := auth.NewService(users, issuer, signingKey, time.Hour)
	for _, acc := range [][3]string{{"admin", "admin123", auth.RoleAdmin}, {"guru", "gurukelas6", auth.RoleGuru}} {
		_, err := svc.Register(context.Background(), acc[0], acc[1], acc[2])
		require.NoError(t, err)
	}

	r := gin.New()
	New(engine, svc, logging.Discard(), false).Mount(r, Routes{
		Session: auth.RequireSession(signingKey, issuer),
	})
	api := &testAPI{router: r, engine: engine, hub: hub}
	api.admin = api.login(t, "admin", "admin123")
	api.guru = api.login(t, "guru", "gurukelas6")
	return api
}

func (a *testAPI) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	w := a.do(http.MethodPost, "/api/auth/login", gin.H{"username": username, "password": password}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			assert.True(t, c.HttpOnly)
			assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func (a *testAPI) createStudent(t *testing.T, uid, number, name string) attendance.Student {
	t.Helper()
	w := a.do(http.MethodPost, "/api/students", gin.H{"uid": uid, "name": name, "studentId": number, "gender": "Perempuan"}, a.guru)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data attendance.Student `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestTap(t *testing.T) {
	api := newTestAPI(t)
	api.createStudent(t, "04A1B2", "S-01", "Siti")

	w := api.do(http.MethodPost, "/api/attendance/tap", gin.H{"uid": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/attendance/tap", gin.H{"uid": "FFFF"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/api/attendance/tap", gin.H{"uid": "04A1B2", "image_data": "@@not-base64@@"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Hadir, Siti", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "HADIR", data["status"])
	assert.Nil(t, data["photoUrl"])

	w = api.do(http.MethodPost, "/api/attendance/tap", gin.H{"uid": "04A1B2"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	body = decode(t, w)
	assert.Equal(t, "Sudah absen: HADIR", body["message"])
	assert.Equal(t, "HADIR", body["status"])
}

func TestRegistrationModeFlow(t *testing.T) {
	api := newTestAPI(t)
	sub := api.hub.Subscribe()
	defer api.hub.Unsubscribe(sub)

	w := api.do(http.MethodPost, "/api/registration-mode", gin.H{"enabled": true}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/api/registration-mode", gin.H{}, api.guru)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/registration-mode", gin.H{"enabled": true}, api.guru)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["isRegistrationMode"])

	w = api.do(http.MethodGet, "/api/registration-mode", nil, api.guru)
	assert.Equal(t, true, decode(t, w)["isRegistrationMode"])

	w = api.do(http.MethodPost, "/api/attendance/tap", gin.H{"uid": "NEW1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Registration prompt sent", decode(t, w)["message"])

	var types []string
	for i := 0; i < 2; i++ {
		var evt broadcast.Event
		require.NoError(t, json.Unmarshal(<-sub.C(), &evt))
		types = append(types, evt.Type)
	}
	assert.Equal(t, []string{broadcast.TypeModeStatus, broadcast.TypeRegistrationPrompt}, types)
}

func TestCreateStudent(t *testing.T) {
	api := newTestAPI(t)
	api.createStudent(t, "U1", "S-01", "Siti")

	tests := []struct {
		name   string
		body   gin.H
		status int
	}{
		{"duplicate uid", gin.H{"uid": "U1", "name": "Budi", "studentId": "S-02", "gender": "Laki-laki"}, http.StatusConflict},
		{"missing name", gin.H{"uid": "U2", "studentId": "S-02", "gender": "Laki-laki"}, http.StatusBadRequest},
		{"bad gender", gin.H{"uid": "U2", "name": "Budi", "studentId": "S-02", "gender": "L"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/students", tt.body, api.admin)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := api.do(http.MethodGet, "/api/students", nil, api.guru)
	require.Equal(t, http.StatusOK, w.Code)
	var students []attendance.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &students))
	assert.Len(t, students, 1)
}

func TestManualEntry(t *testing.T) {
	api := newTestAPI(t)
	st := api.createStudent(t, "U1", "S-01", "Siti")
	today := api.engine.Today().Key()

	w := api.do(http.MethodPost, "/api/attendance/manual", gin.H{"studentId": st.ID, "date": today, "status": "TELAT"}, api.guru)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/attendance/manual", gin.H{"studentId": "missing", "date": today, "status": "IZIN"}, api.guru)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/api/attendance/manual", gin.H{"studentId": st.ID, "date": today}, api.guru)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/attendance/manual", gin.H{"studentId": st.ID, "date": today, "status": "sakit", "keterangan": "demam"}, api.guru)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "SAKIT", data["status"])
	assert.Equal(t, "demam", data["keterangan"])

	w = api.do(http.MethodGet, "/api/attendance/today", nil, api.guru)
	require.Equal(t, http.StatusOK, w.Code)
	var board attendance.Board
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board.Attendances, 1)
	assert.Equal(t, attendance.StatusSakit, board.Attendances[0].Status)
	assert.Empty(t, board.AbsentStudents)
}

func TestAbsentAndReport(t *testing.T) {
	api := newTestAPI(t)
	api.createStudent(t, "U1", "S-01", "Siti")
	api.createStudent(t, "U2", "S-02", "Budi")
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/attendance/tap", gin.H{"uid": "U1"}, nil).Code)

	w := api.do(http.MethodGet, "/api/attendance/absent", nil, api.guru)
	require.Equal(t, http.StatusOK, w.Code)
	var absent []attendance.Student
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &absent))
	require.Len(t, absent, 1)
	assert.Equal(t, "Budi", absent[0].Name)

	today := api.engine.Today().Key()
	w = api.do(http.MethodGet, "/api/reports/attendance?format=json&start="+today+"&end="+today, nil, api.guru)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode(t, w)["records"].([]any)
	assert.Len(t, records, 1)

	w = api.do(http.MethodGet, "/api/reports/attendance?start="+today, nil, api.guru)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w = api.do(http.MethodGet, "/api/reports/attendance?start=2024-03-05&end=2024-03-01", nil, api.guru)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/auth/login", gin.H{"username": "admin", "password": "salah"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = api.do(http.MethodPost, "/api/auth/login", gin.H{"username": "admin"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/auth/me", nil, api.guru)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guru", decode(t, w)["role"])

	newUser := gin.H{"username": "bu_ani", "password": "rahasia", "role": "guru"}
	w = api.do(http.MethodPost, "/api/auth/register", newUser, api.guru)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = api.do(http.MethodPost, "/api/auth/register", newUser, api.admin)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = api.do(http.MethodPost, "/api/auth/register", newUser, api.admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPost, "/api/auth/logout", nil, api.guru)
	require.Equal(t, http.StatusOK, w.Code)
	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}
