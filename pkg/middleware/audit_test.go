package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackportal/portal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAuditLogger(t *testing.T) *AuditLogger {
	t.Helper()
	cfg := DefaultAuditConfig(nil)
	cfg.FlushInterval = time.Hour
	cfg.EventID = func(c *gin.Context) string { return c.GetString("event_id") }
	al := NewAuditLogger(cfg)
	al.SetTestMode(true)
	return al
}

func auditRouter(al *AuditLogger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(func(c *gin.Context) {
		c.Set(ContextKeyUserID, "u-1")
		c.Set(ContextKeyRole, RoleAdmin)
		c.Set("event_id", "e-1")
		c.Next()
	})
	r.Use(AuditMiddleware(al))

	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.GET("/api/v1/lighthouses", ok)
	r.PATCH("/api/v1/events/:event_id/lighthouses/:table", ok)
	r.POST("/api/v1/admin/events", func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{}) })
	r.POST("/api/v1/admin/events/:id/activate", ok)
	r.DELETE("/api/v1/admin/events/:id", func(c *gin.Context) {
		SkipAudit(c)
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuditTarget(t *testing.T) {
	tests := []struct {
		name     string
		route    string
		params   gin.Params
		resource string
		id       string
		action   AuditAction
	}{
		{"collection", "/api/v1/admin/events", nil, "event", "", ""},
		{"member", "/api/v1/admin/events/:id", gin.Params{{Key: "id", Value: "e-9"}}, "event", "e-9", ""},
		{"verb", "/api/v1/admin/events/:id/activate", gin.Params{{Key: "id", Value: "e-9"}}, "event", "e-9", AuditActionActivate},
		{
			"nested under event",
			"/api/v1/events/:event_id/lighthouses/:table",
			gin.Params{{Key: "event_id", Value: "e-1"}, {Key: "table", Value: "3"}},
			"lighthouse", "3", "",
		},
		{"unprefixed", "/api/v1/lighthouses/:table", gin.Params{{Key: "table", Value: "4"}}, "lighthouse", "4", ""},
		{"root", "/", nil, "unknown", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resource, id, action := auditTarget(tt.route, tt.params)
			assert.Equal(t, tt.resource, resource)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.action, action)
		})
	}
}

func TestMethodAction(t *testing.T) {
	assert.Equal(t, AuditActionCreate, methodAction(http.MethodPost))
	assert.Equal(t, AuditActionUpdate, methodAction(http.MethodPatch))
	assert.Equal(t, AuditActionUpdate, methodAction(http.MethodPut))
	assert.Equal(t, AuditActionDelete, methodAction(http.MethodDelete))
}

func TestMaskSensitiveFields(t *testing.T) {
	input := map[string]any{
		"name":     "Spring Hack",
		"password": "hunter2",
		"nested": map[string]any{
			"api_key": "k",
			"slug":    "spring-hack",
		},
	}

	out := maskSensitiveFields(input, []string{"password", "api_key"})
	assert.Equal(t, "Spring Hack", out["name"])
	assert.Equal(t, "[REDACTED]", out["password"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "[REDACTED]", nested["api_key"])
	assert.Equal(t, "spring-hack", nested["slug"])
	assert.Nil(t, maskSensitiveFields(nil, nil))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "10.0.0.5, 10.0.0.1"}, "127.0.0.1:1", "10.0.0.5"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.6"}, "127.0.0.1:1", "10.0.0.6"},
		{"remote addr", nil, "10.0.0.7:5555", "10.0.0.7"},
		{"bare remote", nil, "10.0.0.8", "10.0.0.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(c))
		})
	}
}

func TestAuditMiddleware_RecordsMutations(t *testing.T) {
	al := newTestAuditLogger(t)
	r := auditRouter(al)

	send := func(method, path, body string) int {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/api/v1/lighthouses", ""))
	assert.Equal(t, http.StatusOK, send(http.MethodPatch, "/api/v1/events/e-1/lighthouses/3", `{"ip_address":"10.0.0.5"}`))
	assert.Equal(t, http.StatusCreated, send(http.MethodPost, "/api/v1/admin/events", `{"name":"Spring Hack","secret":"x"}`))
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/v1/admin/events/e-2/activate", ""))
	assert.Equal(t, http.StatusNoContent, send(http.MethodDelete, "/api/v1/admin/events/e-2", ""))
	assert.Equal(t, http.StatusNotFound, send(http.MethodPost, "/nowhere", ""))

	require.NoError(t, al.Close())
	entries := al.TestEntries()
	require.Len(t, entries, 3)

	patch := entries[0]
	assert.Equal(t, AuditActionUpdate, patch.Action)
	assert.Equal(t, "lighthouse", patch.ResourceType)
	require.NotNil(t, patch.ResourceID)
	assert.Equal(t, "3", *patch.ResourceID)
	require.NotNil(t, patch.EventID)
	assert.Equal(t, "e-1", *patch.EventID)
	require.NotNil(t, patch.UserID)
	assert.Equal(t, "u-1", *patch.UserID)
	assert.Equal(t, RoleAdmin, patch.UserRole)
	assert.Equal(t, "10.0.0.5", patch.Body["ip_address"])
	assert.NotEmpty(t, patch.RequestID)
	assert.NotEmpty(t, patch.ID)

	create := entries[1]
	assert.Equal(t, AuditActionCreate, create.Action)
	assert.Equal(t, "event", create.ResourceType)
	assert.Nil(t, create.ResourceID)
	assert.Equal(t, http.StatusCreated, create.Status)
	assert.Equal(t, "[REDACTED]", create.Body["secret"])

	activate := entries[2]
	assert.Equal(t, AuditActionActivate, activate.Action)
	require.NotNil(t, activate.ResourceID)
	assert.Equal(t, "e-2", *activate.ResourceID)
}

func TestAuditMiddleware_BodyStillReadable(t *testing.T) {
	al := newTestAuditLogger(t)
	r := gin.New()
	r.Use(AuditMiddleware(al))

	var got struct {
		Name string `json:"name"`
	}
	r.POST("/api/v1/admin/events", func(c *gin.Context) {
		require.NoError(t, c.ShouldBindJSON(&got))
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/events", bytes.NewBufferString(`{"name":"Spring Hack"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "Spring Hack", got.Name)
	require.NoError(t, al.Close())
	require.Len(t, al.TestEntries(), 1)
}

func TestAuditLogger_BufferFull(t *testing.T) {
	al := &AuditLogger{
		config: DefaultAuditConfig(nil),
		log:    logger.NewNop(),
		buffer: make(chan *AuditEntry, 1),
	}

	assert.True(t, al.Log(&AuditEntry{ID: "1"}))
	assert.False(t, al.Log(&AuditEntry{ID: "2"}))
}

func TestAuditLogger_BatchFlush(t *testing.T) {
	cfg := DefaultAuditConfig(nil)
	cfg.BatchSize = 2
	cfg.FlushInterval = time.Hour
	al := NewAuditLogger(cfg)
	al.SetTestMode(true)
	defer al.Close()

	al.Log(&AuditEntry{ID: "1"})
	al.Log(&AuditEntry{ID: "2"})

	assert.Eventually(t, func() bool {
		return len(al.TestEntries()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestAuditLogger_CloseIsIdempotent(t *testing.T) {
	al := newTestAuditLogger(t)
	al.Log(&AuditEntry{ID: "1"})

	require.NoError(t, al.Close())
	require.NoError(t, al.Close())
	assert.Len(t, al.TestEntries(), 1)
}
