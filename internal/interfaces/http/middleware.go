package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	"github.com/garyjia/booking-voucher/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	identityKey     = "identity"
)

var (
	errAuthRequired = apperror.InvalidToken("authentication required")
	errRoleDenied   = apperror.Forbidden("role is not allowed to perform this operation")
)

// RequestID ensures every request has an ID for tracing and logs
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID extracts the request id set by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// CORS allows the scanner and web clients to call the API
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

// Metrics records request count, latency and in-flight requests
func Metrics(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}

		recorder.HTTPRequestsInFlight.Inc()
		defer recorder.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		recorder.ObserveHTTP(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// AccessLog logs one line per request
func AccessLog(logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", GetRequestID(c),
		)
	}
}

// Authenticate attaches the bearer identity when present.
// A present but invalid token is rejected; a missing one leaves the caller anonymous.
func Authenticate(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			abortWithError(c, apperror.InvalidToken("malformed authorization header"))
			return
		}

		identity, err := auth.ParseIdentity(strings.TrimSpace(raw))
		if err != nil {
			abortWithError(c, apperror.Wrap(apperror.KindInvalidToken, err, "invalid bearer token"))
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAuth rejects anonymous callers
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identityFrom(c) == nil {
			abortWithError(c, errAuthRequired)
			return
		}
		c.Next()
	}
}

// RequireRoles allows only the listed roles
func RequireRoles(roles ...entity.Role) gin.HandlerFunc {
	allowed := make(map[entity.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id := identityFrom(c)
		if id == nil {
			abortWithError(c, errAuthRequired)
			return
		}
		if _, ok := allowed[id.Role]; !ok {
			abortWithError(c, errRoleDenied)
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) *entity.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*entity.Identity)
	return id
}

// actorFrom builds the service actor for the current request
func actorFrom(c *gin.Context) entity.Actor {
	return entity.Actor{
		Identity:  identityFrom(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func abortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.AbortWithStatusJSON(status, body)
}

// statusForKind maps error kinds onto HTTP status codes
func statusForKind(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindExpired:
		return http.StatusGone
	case apperror.KindInvalidToken:
		return http.StatusUnauthorized
	case apperror.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorResponse hides internal error details from clients
func errorResponse(err error) (int, Response) {
	kind := apperror.KindOf(err)
	status := statusForKind(kind)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	return status, Response{Success: false, Error: msg, Kind: string(kind)}
}
