package tracking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/config"
	"github.com/aman-churiwal/api-tracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Persists one assembled record. The default handler enqueues onto the
// async batch writer; a failing handler never fails the request.
type HandleLogFunc func(ctx context.Context, entry *models.APIRequestLog) error

// Decides whether an assembled record gets persisted. Replaces the
// default method filter when set.
type ShouldLogFunc func(c *gin.Context, entry *models.APIRequestLog) bool

// Tracker records request/response cycles for the routes it is
// attached to. Each route group can carry its own Tracker with its own
// method filter, sensitive fields and persistence hook, so logging
// policy can differ per view.
type Tracker struct {
	defaults config.TrackingConfig
	logger   *zap.Logger

	handleLog HandleLogFunc
	shouldLog ShouldLogFunc

	methods         map[string]struct{}
	sensitiveFields map[string]struct{}
	substitute      string
	decodeBody      *bool
}

type Option func(*Tracker)

// Restricts logging to the given HTTP methods. Without this option
// every method is logged.
func WithMethods(methods ...string) Option {
	return func(t *Tracker) {
		t.methods = make(map[string]struct{}, len(methods))
		for _, m := range methods {
			t.methods[strings.ToUpper(m)] = struct{}{}
		}
	}
}

// Adds field names (case-insensitive) to the redaction set.
func WithSensitiveFields(fields ...string) Option {
	return func(t *Tracker) {
		t.sensitiveFields = make(map[string]struct{}, len(fields))
		for _, f := range fields {
			t.sensitiveFields[strings.ToLower(f)] = struct{}{}
		}
	}
}

// Overrides the replacement string for redacted values.
func WithCleanedSubstitute(substitute string) Option {
	return func(t *Tracker) {
		t.substitute = substitute
	}
}

// Overrides the global decode_request_body toggle for this tracker.
func WithDecodeRequestBody(decode bool) Option {
	return func(t *Tracker) {
		t.decodeBody = &decode
	}
}

// Replaces the default method-filter predicate.
func WithShouldLog(fn ShouldLogFunc) Option {
	return func(t *Tracker) {
		t.shouldLog = fn
	}
}

func New(defaults config.TrackingConfig, logger *zap.Logger, handleLog HandleLogFunc, opts ...Option) (*Tracker, error) {
	if handleLog == nil {
		return nil, errors.New("tracking: handleLog is required")
	}

	t := &Tracker{
		defaults:   defaults,
		logger:     logger,
		handleLog:  handleLog,
		substitute: defaults.CleanedSubstitute,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.substitute == "" {
		return nil, errors.New("tracking: cleaned substitute must be a non-empty string")
	}

	return t, nil
}

// Handler returns the middleware that wraps tracked routes.
func (t *Tracker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestedAt := time.Now()

		var requestBody []byte
		if t.decodeRequestBody() && c.Request.Body != nil && c.Request.Body != http.NoBody {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(requestBody))
		}

		writer := &captureWriter{ResponseWriter: c.Writer, limit: t.defaults.MaxBodyLength}
		c.Writer = writer

		var panicTrace string
		func() {
			defer func() {
				if r := recover(); r != nil {
					panicTrace = fmt.Sprintf("panic: %v\n%s", r, debug.Stack())
					if !c.Writer.Written() {
						c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
							"error": "Internal Server Error",
						})
					}
				}
			}()
			c.Next()
		}()

		t.finalize(c, writer, requestedAt, requestBody, panicTrace)
	}
}

func (t *Tracker) finalize(c *gin.Context, writer *captureWriter, requestedAt time.Time, requestBody []byte, panicTrace string) {
	entry := &models.APIRequestLog{
		RequestedAt: requestedAt,
		ResponseMs:  responseMs(requestedAt),
		Path:        truncate(c.Request.URL.Path, t.defaults.MaxPathLength),
		View:        c.HandlerName(),
		ViewMethod:  strings.ToLower(c.Request.Method),
		RemoteAddr:  remoteAddr(c.Request),
		Host:        c.Request.Host,
		Method:      c.Request.Method,
		StatusCode:  c.Writer.Status(),
	}

	t.resolveActor(c, entry)

	// The response is assembled before the predicate runs so custom
	// ShouldLog implementations can inspect it
	entry.Response = t.CleanData(writer.captured())

	if !t.passes(c, entry) {
		return
	}

	entry.QueryParams = t.CleanParams(c.Request.URL.Query())
	if t.decodeRequestBody() {
		entry.Data = t.CleanData(requestBody)
	}
	entry.Errors = collectErrors(c, panicTrace)

	// Persistence must never break the request
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("logging API call panicked", zap.Any("panic", r))
		}
	}()

	if err := t.handleLog(c.Request.Context(), entry); err != nil {
		t.logger.Error("logging API call failed",
			zap.String("path", entry.Path),
			zap.Error(err),
		)
	}
}

func (t *Tracker) passes(c *gin.Context, entry *models.APIRequestLog) bool {
	if t.shouldLog != nil {
		return t.shouldLog(c, entry)
	}
	if t.methods == nil {
		return true
	}
	_, ok := t.methods[c.Request.Method]
	return ok
}

func (t *Tracker) decodeRequestBody() bool {
	if t.decodeBody != nil {
		return *t.decodeBody
	}
	return t.defaults.DecodeRequestBody
}

func (t *Tracker) resolveActor(c *gin.Context, entry *models.APIRequestLog) {
	entry.UsernamePersistent = "AnonymousUser"

	if idValue, exists := c.Get("user_id"); exists {
		if idStr, ok := idValue.(string); ok {
			if id, err := uuid.Parse(idStr); err == nil {
				entry.UserID = &id
			}
		}
	}
	if nameValue, exists := c.Get("username"); exists {
		if name, ok := nameValue.(string); ok && name != "" {
			entry.Username = name
			entry.UsernamePersistent = name
		}
	}
	if keyValue, exists := c.Get("api_key_id"); exists {
		if id, ok := keyValue.(uuid.UUID); ok {
			entry.APIKeyID = &id
		}
	}
}

func collectErrors(c *gin.Context, panicTrace string) string {
	var parts []string
	if panicTrace != "" {
		parts = append(parts, panicTrace)
	}
	if len(c.Errors) > 0 {
		parts = append(parts, c.Errors.String())
	}
	return strings.Join(parts, "\n")
}

// Clock skew can make the elapsed time negative; store zero instead.
func responseMs(requestedAt time.Time) int {
	ms := int(time.Since(requestedAt).Milliseconds())
	if ms < 0 {
		return 0
	}
	return ms
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}

// captureWriter buffers the rendered response up to limit. Responses
// that overflow the limit (streaming, large downloads) are recorded
// with an empty response body.
type captureWriter struct {
	gin.ResponseWriter
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.capture(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *captureWriter) capture(b []byte) {
	if w.overflow {
		return
	}
	if w.limit > 0 && w.body.Len()+len(b) > w.limit {
		w.overflow = true
		w.body.Reset()
		return
	}
	w.body.Write(b)
}

func (w *captureWriter) captured() []byte {
	if w.overflow {
		return nil
	}
	return w.body.Bytes()
}
