package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackportal/portal/pkg/logger"
)

// AuditAction is what a request did to a resource
type AuditAction string

const (
	AuditActionCreate   AuditAction = "create"
	AuditActionUpdate   AuditAction = "update"
	AuditActionDelete   AuditAction = "delete"
	AuditActionActivate AuditAction = "activate"
)

// verb segments that name the action instead of a resource
var auditVerbs = map[string]AuditAction{
	"activate": AuditActionActivate,
}

const contextKeyAuditSkip = "audit_skip"

// AuditEntry is one row of the audit trail
type AuditEntry struct {
	ID           string         `json:"id"`
	EventID      *string        `json:"event_id,omitempty"`
	UserID       *string        `json:"user_id,omitempty"`
	UserRole     string         `json:"user_role,omitempty"`
	Action       AuditAction    `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *string        `json:"resource_id,omitempty"`
	Status       int            `json:"status"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Body         map[string]any `json:"body,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditConfig holds configuration for the audit middleware
type AuditConfig struct {
	// DB receives batched inserts into audit_logs; entries are only logged when nil
	DB     *pgxpool.Pool
	Logger *logger.Logger
	// BufferSize is the capacity of the async queue (default: 1000)
	BufferSize int
	// FlushInterval is how often a partial batch is written (default: 5 seconds)
	FlushInterval time.Duration
	// BatchSize is the maximum number of rows per insert batch (default: 100)
	BatchSize int
	// SkipMethods are never audited (default: GET, HEAD, OPTIONS)
	SkipMethods []string
	// EventID returns the event bound to the request, or ""
	EventID func(c *gin.Context) string
	// CaptureBody records the JSON request body with sensitive fields masked
	CaptureBody     bool
	MaxBodySize     int
	SensitiveFields []string
}

// DefaultAuditConfig returns default configuration
func DefaultAuditConfig(db *pgxpool.Pool) *AuditConfig {
	return &AuditConfig{
		DB:              db,
		BufferSize:      1000,
		FlushInterval:   5 * time.Second,
		BatchSize:       100,
		SkipMethods:     []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		CaptureBody:     true,
		MaxBodySize:     10 * 1024,
		SensitiveFields: []string{"password", "token", "secret", "api_key"},
	}
}

// AuditLogger writes audit entries in the background
type AuditLogger struct {
	config    *AuditConfig
	log       *logger.Logger
	buffer    chan *AuditEntry
	wg        sync.WaitGroup
	closeOnce sync.Once

	// test mode collects entries instead of writing them
	testMode    bool
	testEntries []*AuditEntry
	testMu      sync.Mutex
}

// NewAuditLogger creates an audit logger and starts its worker
func NewAuditLogger(config *AuditConfig) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 10 * 1024
	}
	log := config.Logger
	if log == nil {
		log = logger.NewNop()
	}

	al := &AuditLogger{
		config: config,
		log:    log.Named("audit"),
		buffer: make(chan *AuditEntry, config.BufferSize),
	}

	al.wg.Add(1)
	go al.worker()

	return al
}

// Log queues an entry without blocking. It reports false when the entry was
// dropped because the queue is full.
func (al *AuditLogger) Log(entry *AuditEntry) bool {
	select {
	case al.buffer <- entry:
		return true
	default:
		al.log.Warn("audit queue full, entry dropped",
			zap.String("action", string(entry.Action)),
			zap.String("resource_type", entry.ResourceType),
		)
		return false
	}
}

// Close flushes queued entries and stops the worker
func (al *AuditLogger) Close() error {
	al.closeOnce.Do(func() {
		close(al.buffer)
		al.wg.Wait()
	})
	return nil
}

// SetTestMode enables test mode which collects entries instead of writing them
func (al *AuditLogger) SetTestMode(enabled bool) {
	al.testMu.Lock()
	defer al.testMu.Unlock()
	al.testMode = enabled
	al.testEntries = nil
}

// TestEntries returns the entries collected in test mode
func (al *AuditLogger) TestEntries() []*AuditEntry {
	al.testMu.Lock()
	defer al.testMu.Unlock()
	result := make([]*AuditEntry, len(al.testEntries))
	copy(result, al.testEntries)
	return result
}

func (al *AuditLogger) worker() {
	defer al.wg.Done()

	ticker := time.NewTicker(al.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]*AuditEntry, 0, al.config.BatchSize)

	for {
		select {
		case entry, ok := <-al.buffer:
			if !ok {
				al.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= al.config.BatchSize {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				al.flush(batch)
				batch = make([]*AuditEntry, 0, al.config.BatchSize)
			}
		}
	}
}

const insertAuditSQL = `
	INSERT INTO audit_logs (
		id, event_id, user_id, user_role, action, resource_type, resource_id,
		status, ip_address, user_agent, request_id, body, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

func (al *AuditLogger) flush(entries []*AuditEntry) {
	if len(entries) == 0 {
		return
	}

	al.testMu.Lock()
	if al.testMode {
		al.testEntries = append(al.testEntries, entries...)
		al.testMu.Unlock()
		return
	}
	al.testMu.Unlock()

	if al.config.DB == nil {
		for _, e := range entries {
			al.log.Info("audit",
				zap.String("action", string(e.Action)),
				zap.String("resource_type", e.ResourceType),
				zap.Stringp("resource_id", e.ResourceID),
				zap.Stringp("event_id", e.EventID),
				zap.Stringp("user_id", e.UserID),
				zap.Int("status", e.Status),
			)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, e := range entries {
		var body []byte
		if e.Body != nil {
			body, _ = json.Marshal(e.Body)
		}
		batch.Queue(insertAuditSQL,
			e.ID, e.EventID, e.UserID, e.UserRole, string(e.Action), e.ResourceType, e.ResourceID,
			e.Status, e.IPAddress, e.UserAgent, e.RequestID, body, e.CreatedAt,
		)
	}

	results := al.config.DB.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			// audit failures never fail the request that caused them
			al.log.Warn("failed to write audit entry", zap.Error(err))
		}
	}
}

// AuditMiddleware records every state-changing request that matched a route
func AuditMiddleware(al *AuditLogger) gin.HandlerFunc {
	config := al.config
	return func(c *gin.Context) {
		for _, method := range config.SkipMethods {
			if c.Request.Method == method {
				c.Next()
				return
			}
		}

		var body map[string]any
		if config.CaptureBody && c.Request.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(config.MaxBodySize)))
			if err == nil && len(raw) > 0 {
				c.Request.Body = io.NopCloser(bytes.NewReader(raw))
				if json.Unmarshal(raw, &body) == nil {
					body = maskSensitiveFields(body, config.SensitiveFields)
				}
			}
		}

		startTime := time.Now()
		c.Next()

		if skip, _ := c.Get(contextKeyAuditSkip); skip == true {
			return
		}
		route := c.FullPath()
		if route == "" {
			return
		}

		resourceType, resourceID, action := auditTarget(route, c.Params)
		if action == "" {
			action = methodAction(c.Request.Method)
		}

		entry := &AuditEntry{
			ID:           uuid.New().String(),
			Action:       action,
			ResourceType: resourceType,
			Status:       c.Writer.Status(),
			IPAddress:    getClientIP(c),
			UserAgent:    c.GetHeader("User-Agent"),
			Body:         body,
			CreatedAt:    startTime,
		}
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}
		if userID, ok := GetUserID(c); ok && userID != "" {
			entry.UserID = &userID
		}
		if role, ok := GetRole(c); ok {
			entry.UserRole = role
		}
		if config.EventID != nil {
			if id := config.EventID(c); id != "" {
				entry.EventID = &id
			}
		}
		if reqID, ok := c.Get(ContextKeyRequestID); ok {
			entry.RequestID, _ = reqID.(string)
		}

		al.Log(entry)
	}
}

// SkipAudit marks the current request to skip audit logging
func SkipAudit(c *gin.Context) {
	c.Set(contextKeyAuditSkip, true)
}

// auditTarget reads the resource from a route template.
// /api/v1/events/:event_id/lighthouses/:table -> ("lighthouse", "3", "")
// /api/v1/admin/events/:id/activate -> ("event", "<id>", "activate")
func auditTarget(route string, params gin.Params) (resourceType, resourceID string, action AuditAction) {
	resourceType = "unknown"
	for _, part := range strings.Split(strings.Trim(route, "/"), "/") {
		switch {
		case part == "api" || part == "admin" || isVersionSegment(part):
		case strings.HasPrefix(part, ":"):
			resourceID = params.ByName(part[1:])
		case auditVerbs[part] != "":
			action = auditVerbs[part]
		default:
			resourceType = strings.TrimSuffix(part, "s")
			resourceID = ""
		}
	}
	return resourceType, resourceID, action
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func methodAction(method string) AuditAction {
	switch method {
	case http.MethodPost:
		return AuditActionCreate
	case http.MethodDelete:
		return AuditActionDelete
	default:
		return AuditActionUpdate
	}
}

func getClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}

func maskSensitiveFields(data map[string]any, sensitiveFields []string) map[string]any {
	if data == nil {
		return nil
	}

	result := make(map[string]any, len(data))
	for k, v := range data {
		lowKey := strings.ToLower(k)
		masked := false
		for _, sf := range sensitiveFields {
			if strings.Contains(lowKey, strings.ToLower(sf)) {
				result[k] = "[REDACTED]"
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			result[k] = maskSensitiveFields(nested, sensitiveFields)
		} else {
			result[k] = v
		}
	}
	return result
}
