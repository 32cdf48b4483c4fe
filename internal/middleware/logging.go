// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/licensegate/internal/models"
)

const redacted = "[redacted]"

// Body fields whose values never reach the audit log.
var sensitiveFields = []string{"token", "secret", "key", "password", "order_id"}

// AuditLogMiddleware records every mutating request as an AuditLog row.
func AuditLogMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for GET requests and health checks
		if c.Request.Method == "GET" || c.Request.Method == "OPTIONS" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		// Read request body
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		c.Next()

		auditLog := &models.AuditLog{
			Action:       c.Request.Method + " " + c.FullPath(),
			ResourceType: extractResourceType(c.Request.URL.Path),
			ResourceID:   extractResourceID(c.Request.URL.Path),
			Status:       c.Writer.Status(),
			NewValues:    auditValues(requestBody),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
		}
		if auditLog.Action == c.Request.Method+" " {
			auditLog.Action += c.Request.URL.Path
		}

		// Save audit log asynchronously
		go func() {
			if err := db.Create(auditLog).Error; err != nil {
				logrus.WithError(err).Error("Failed to create audit log")
			}
		}()
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request processed")
		case status >= 400:
			entry.Warn("Request processed")
		default:
			entry.Info("Request processed")
		}
	}
}

// auditValues flattens a JSON object body, masking sensitive values.
func auditValues(body []byte) models.Metadata {
	if len(body) == 0 {
		return nil
	}

	var requestData map[string]interface{}
	if err := json.Unmarshal(body, &requestData); err != nil {
		return nil
	}

	values := make(models.Metadata, len(requestData))
	for k, v := range requestData {
		if isSensitive(k) {
			values[k] = redacted
			continue
		}
		switch val := v.(type) {
		case string:
			values[k] = val
		case nil:
			values[k] = ""
		case map[string]interface{}, []interface{}:
			encoded, _ := json.Marshal(val)
			values[k] = string(encoded)
		default:
			values[k] = fmt.Sprint(val)
		}
	}
	return values
}

func isSensitive(field string) bool {
	field = strings.ToLower(field)
	for _, s := range sensitiveFields {
		if strings.Contains(field, s) {
			return true
		}
	}
	return false
}

func extractResourceType(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "v1" && parts[1] == "admin" {
		return parts[2]
	}
	if len(parts) >= 2 && parts[0] == "v1" {
		return parts[1]
	}
	if len(parts) >= 1 && parts[0] != "" {
		return parts[0]
	}
	return "unknown"
}

// extractResourceID returns the first numeric path segment.
func extractResourceID(path string) *uint {
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if id, err := strconv.ParseUint(part, 10, 64); err == nil {
			v := uint(id)
			return &v
		}
	}
	return nil
}
