package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-device-service/internal/domain/repository"
	"iot-device-service/internal/domain/services/container"
	"iot-device-service/internal/infrastructure/config"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func testConfig() *config.Config {
	return &config.Config{
		EnvType:    config.EnvTest,
		CORSOrigin: "*",
		JWT: config.JWT{
			AccessSecret:  "test-access",
			RefreshSecret: "test-refresh",
			AccessTTL:     config.TTL(15 * time.Minute),
			RefreshTTL:    config.TTL(7 * 24 * time.Hour),
			Issuer:        "iot-device-service",
		},
		RateLimit: config.RateLimit{
			Window:  config.TTL(time.Minute),
			Max:     1000,
			AuthMax: 100,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c := container.NewServiceContainer(cfg, repository.NewMemoryRepositories(), nil, nil)
	return SetupRouter(c)
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func register(t *testing.T, r http.Handler, name, email string) string {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/v1/auth/register", "", gin.H{
		"name": name, "email": email, "password": "12345678",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		Tokens struct {
			Access struct {
				Token string `json:"token"`
			} `json:"access"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Tokens.Access.Token)
	return data.Tokens.Access.Token
}

type deviceBody struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

func createDevice(t *testing.T, r http.Handler, token string, body gin.H) deviceBody {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/v1/devices", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d deviceBody
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return d
}

func TestScenario_RegisterDeviceHeartbeatUsage(t *testing.T) {
	r := newTestRouter(t, testConfig())

	register(t, r, "A", "a@x.com")

	w, env := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "a@x.com", "password": "12345678"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		User struct {
			Email    string `json:"email"`
			Role     string `json:"role"`
			Password string `json:"password"`
		} `json:"user"`
		Tokens struct {
			Access  struct{ Token string } `json:"access"`
			Refresh struct{ Token string } `json:"refresh"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Tokens.Access.Token)
	assert.Equal(t, "user", login.User.Role)
	assert.Empty(t, login.User.Password)
	token := login.Tokens.Access.Token

	device := createDevice(t, r, token, gin.H{"name": "D1", "type": "light"})
	assert.Equal(t, "inactive", device.Status)
	assert.Nil(t, device.LastActiveAt)

	w, env = doJSON(t, r, http.MethodPost, "/v1/devices/"+device.ID+"/heartbeat", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, env.Message, "Heartbeat received at ")
	var hb struct {
		Device deviceBody `json:"device"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &hb))
	assert.Equal(t, "active", hb.Device.Status)
	require.NotNil(t, hb.Device.LastActiveAt)

	for _, v := range []int{10, 5} {
		w, _ = doJSON(t, r, http.MethodPost, "/v1/devices/"+device.ID+"/logs", token, gin.H{"event": "units_consumed", "value": v})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w, env = doJSON(t, r, http.MethodGet, "/v1/devices/"+device.ID+"/usage?range=24h", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var usage struct {
		Range      string  `json:"range"`
		TotalUsage float64 `json:"totalUsage"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &usage))
	assert.Equal(t, "24h", usage.Range)
	assert.Equal(t, 15.0, usage.TotalUsage)

	w, env = doJSON(t, r, http.MethodGet, "/v1/devices/"+device.ID+"/usage?range=bogus", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &usage))
	assert.Equal(t, "24h", usage.Range)
	assert.Equal(t, 15.0, usage.TotalUsage)

	w, env = doJSON(t, r, http.MethodGet, "/v1/devices/"+device.ID+"/logs?limit=1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []struct {
		Event string          `json:"event"`
		Value json.RawMessage `json:"value"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "units_consumed", logs[0].Event)
	assert.JSONEq(t, "5", string(logs[0].Value))
}

func TestDevices_OwnerScoping(t *testing.T) {
	r := newTestRouter(t, testConfig())
	alice := register(t, r, "Alice", "alice@example.com")
	bob := register(t, r, "Bob", "bob@example.com")

	device := createDevice(t, r, alice, gin.H{"name": "Meter", "type": "meter"})

	paths := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/v1/devices/" + device.ID, nil},
		{http.MethodPatch, "/v1/devices/" + device.ID, gin.H{"name": "mine now"}},
		{http.MethodDelete, "/v1/devices/" + device.ID, nil},
		{http.MethodPost, "/v1/devices/" + device.ID + "/heartbeat", nil},
		{http.MethodPost, "/v1/devices/" + device.ID + "/logs", gin.H{"event": "e", "value": 1}},
		{http.MethodGet, "/v1/devices/" + device.ID + "/logs", nil},
		{http.MethodGet, "/v1/devices/" + device.ID + "/usage", nil},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w, env := doJSON(t, r, p.method, p.path, bob, p.body)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.False(t, env.Success)
		})
	}

	w, env := doJSON(t, r, http.MethodGet, "/v1/devices", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Results      []deviceBody `json:"results"`
		TotalResults int64        `json:"totalResults"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.Results)
	assert.Zero(t, list.TotalResults)

	w, _ = doJSON(t, r, http.MethodGet, "/v1/devices/"+device.ID, alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDevices_CRUD(t *testing.T) {
	r := newTestRouter(t, testConfig())
	token := register(t, r, "Alice", "alice@example.com")

	for i := 0; i < 3; i++ {
		createDevice(t, r, token, gin.H{"name": fmt.Sprintf("lamp-%d", i), "type": "light"})
	}
	thermo := createDevice(t, r, token, gin.H{"name": "thermo", "type": "thermostat", "status": "faulty"})
	assert.Equal(t, "faulty", thermo.Status)

	w, env := doJSON(t, r, http.MethodGet, "/v1/devices?type=light&limit=2&page=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Results      []deviceBody `json:"results"`
		Page         int          `json:"page"`
		Limit        int          `json:"limit"`
		TotalPages   int          `json:"totalPages"`
		TotalResults int64        `json:"totalResults"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Results, 1)
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 2, list.Limit)
	assert.Equal(t, 2, list.TotalPages)
	assert.EqualValues(t, 3, list.TotalResults)

	w, env = doJSON(t, r, http.MethodPatch, "/v1/devices/"+thermo.ID, token, gin.H{"name": "hall thermostat", "status": "active"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated deviceBody
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "hall thermostat", updated.Name)
	assert.Equal(t, "active", updated.Status)
	assert.Equal(t, "thermostat", updated.Type)

	w, env = doJSON(t, r, http.MethodPatch, "/v1/devices/"+thermo.ID, token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, env.Details)

	w, _ = doJSON(t, r, http.MethodPatch, "/v1/devices/"+thermo.ID+"/heartbeat", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodDelete, "/v1/devices/"+thermo.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Device deleted successfully", env.Message)

	w, _ = doJSON(t, r, http.MethodGet, "/v1/devices/"+thermo.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidationAndAuthErrors(t *testing.T) {
	r := newTestRouter(t, testConfig())
	token := register(t, r, "Alice", "alice@example.com")
	device := createDevice(t, r, token, gin.H{"name": "lamp", "type": "light"})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
		field  string
	}{
		{"no token", http.MethodGet, "/v1/devices", "", nil, http.StatusUnauthorized, ""},
		{"garbage token", http.MethodGet, "/v1/devices", "not-a-jwt", nil, http.StatusUnauthorized, ""},
		{"malformed id", http.MethodGet, "/v1/devices/not-a-uuid", token, nil, http.StatusNotFound, ""},
		{"bad type", http.MethodPost, "/v1/devices", token, gin.H{"name": "x", "type": "toaster"}, http.StatusBadRequest, "type"},
		{"missing name", http.MethodPost, "/v1/devices", token, gin.H{"type": "light"}, http.StatusBadRequest, "name"},
		{"limit too large", http.MethodGet, "/v1/devices?limit=101", token, nil, http.StatusBadRequest, "limit"},
		{"page too large", http.MethodGet, "/v1/devices?page=92233720368547760&limit=100", token, nil, http.StatusBadRequest, "page"},
		{"page wrapping offset", http.MethodGet, "/v1/devices?page=4611686018427387905&limit=100", token, nil, http.StatusBadRequest, "page"},
		{"blank device name", http.MethodPost, "/v1/devices", token, gin.H{"name": "   ", "type": "light"}, http.StatusBadRequest, "name"},
		{"blank device rename", http.MethodPatch, "/v1/devices/" + device.ID, token, gin.H{"name": " \t "}, http.StatusBadRequest, "name"},
		{"blank event", http.MethodPost, "/v1/devices/" + device.ID + "/logs", token, gin.H{"event": "  ", "value": 1}, http.StatusBadRequest, "event"},
		{"log without value", http.MethodPost, "/v1/devices/" + device.ID + "/logs", token, gin.H{"event": "units_consumed"}, http.StatusBadRequest, "value"},
		{"log with null value", http.MethodPost, "/v1/devices/" + device.ID + "/logs", token, gin.H{"event": "units_consumed", "value": nil}, http.StatusBadRequest, "value"},
		{"log without event", http.MethodPost, "/v1/devices/" + device.ID + "/logs", token, gin.H{"value": 1}, http.StatusBadRequest, "event"},
		{"register bad email", http.MethodPost, "/v1/auth/register", "", gin.H{"name": "B", "email": "nope", "password": "12345678"}, http.StatusBadRequest, "email"},
		{"register short password", http.MethodPost, "/v1/auth/register", "", gin.H{"name": "B", "email": "b@x.com", "password": "short"}, http.StatusBadRequest, "password"},
		{"duplicate email", http.MethodPost, "/v1/auth/register", "", gin.H{"name": "A2", "email": "ALICE@example.com", "password": "12345678"}, http.StatusBadRequest, ""},
		{"unknown route", http.MethodGet, "/v1/nothing", "", nil, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doJSON(t, r, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.False(t, env.Success)
			if tt.field != "" {
				require.NotEmpty(t, env.Details)
				assert.Equal(t, tt.field, env.Details[0].Field)
			}
		})
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	r := newTestRouter(t, testConfig())
	register(t, r, "Alice", "alice@example.com")

	wrongPassword, env1 := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-password"})
	unknownEmail, env2 := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "ghost@example.com", "password": "wrong-password"})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownEmail.Code)
	assert.Equal(t, env1.Code, env2.Code)
	assert.Equal(t, env1.Message, env2.Message)
}

func TestRefresh(t *testing.T) {
	r := newTestRouter(t, testConfig())
	w, env := doJSON(t, r, http.MethodPost, "/v1/auth/register", "", gin.H{"name": "A", "email": "a@x.com", "password": "12345678"})
	require.Equal(t, http.StatusCreated, w.Code)
	var data struct {
		Tokens struct {
			Access  struct{ Token string } `json:"access"`
			Refresh struct{ Token string } `json:"refresh"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	w, _ = doJSON(t, r, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refreshToken": data.Tokens.Refresh.Token})
	assert.Equal(t, http.StatusOK, w.Code)

	// access 令牌不能当 refresh 用
	w, _ = doJSON(t, r, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refreshToken": data.Tokens.Access.Token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 反之亦然
	w, _ = doJSON(t, r, http.MethodGet, "/v1/devices", data.Tokens.Refresh.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.AuthMax = 5
	r := newTestRouter(t, cfg)

	for i := 0; i < 5; i++ {
		w, _ := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "nobody@example.com", "password": "x"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "5", w.Header().Get("RateLimit-Limit"))
	}

	w, env := doJSON(t, r, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))
	assert.False(t, env.Success)

	// 健康检查不受认证限流影响
	w, _ = doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeviceRateLimit_AppliesBeforeAuthentication(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Max = 3
	r := newTestRouter(t, cfg)

	for i := 0; i < 3; i++ {
		w, _ := doJSON(t, r, http.MethodGet, "/v1/devices", "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "3", w.Header().Get("RateLimit-Limit"))
	}

	w, env := doJSON(t, r, http.MethodGet, "/v1/devices", "not-a-jwt", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.False(t, env.Success)
}

func TestSecurityHeaders(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w, _ := doJSON(t, r, http.MethodGet, "/v1/health", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, testConfig())
	for _, path := range []string{"/health", "/v1/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "disabled", body["db"])
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}
}
