package idempotency

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bridge-service/bridge_service/internal/infrastructure/repositories"
)

const (
	// HeaderIdempotencyKey is the HTTP header for idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// MaxBodySize is the maximum request body size for idempotency (10MB)
	MaxBodySize = 10 << 20
)

// responseWriter wraps gin.ResponseWriter to capture response
type responseWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Middleware replays a stored response when the same Idempotency-Key and
// request body are submitted again. Without the header requests pass
// through untouched.
func Middleware(repo *repositories.IdempotencyRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to state-changing methods
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodDelete &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(HeaderIdempotencyKey)
		if idempotencyKey == "" {
			// Idempotency is optional; if not provided, proceed normally
			c.Next()
			return
		}

		if err := ValidateKey(idempotencyKey); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      "Invalid idempotency key",
				"message":    err.Error(),
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		bodyBytes, err := ReadBody(c.Request.Body, MaxBodySize)
		if err != nil {
			logger.Error("Failed to read request body",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      "Failed to read request body",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}

		// Restore body for downstream handlers
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		requestHash := HashRequest(bodyBytes)

		existing, err := repo.Get(c.Request.Context(), idempotencyKey)
		if err != nil {
			logger.Error("Failed to check idempotency key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
			// On error, proceed with request (fail open)
			c.Next()
			return
		}

		if existing != nil {
			shouldCache, reason := ShouldReturnCached(
				&Response{Status: existing.ResponseStatus, Body: existing.ResponseBody},
				requestHash,
				existing.RequestHash,
			)

			if !shouldCache {
				logger.Warn("Idempotency key conflict",
					zap.String("idempotency_key", idempotencyKey),
					zap.String("reason", reason))
				c.JSON(http.StatusConflict, gin.H{
					"error":      "Idempotency key conflict",
					"message":    reason,
					"request_id": c.GetString("request_id"),
				})
				c.Abort()
				return
			}

			logger.Info("Returning cached response",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int("status", existing.ResponseStatus))

			var responseBody interface{}
			if err := json.Unmarshal(existing.ResponseBody, &responseBody); err == nil {
				c.JSON(existing.ResponseStatus, responseBody)
			} else {
				c.Data(existing.ResponseStatus, "application/json", existing.ResponseBody)
			}
			c.Abort()
			return
		}

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
			status:         http.StatusOK,
		}
		c.Writer = writer

		c.Next()

		expiresAt := time.Now().Add(DefaultTTL)
		record := &repositories.IdempotencyKey{
			IdempotencyKey: idempotencyKey,
			RequestPath:    c.Request.URL.Path,
			RequestMethod:  c.Request.Method,
			RequestHash:    requestHash,
			ResponseStatus: writer.status,
			ResponseBody:   writer.body.Bytes(),
			ExpiresAt:      expiresAt,
		}

		if err := repo.Create(c.Request.Context(), record); err != nil {
			// Log error but don't fail the request
			logger.Error("Failed to store idempotency key",
				zap.String("idempotency_key", idempotencyKey),
				zap.Error(err))
		}
	}
}
