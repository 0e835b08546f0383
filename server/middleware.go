package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	lottery "github.com/kydenul/lotterysim"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxUserKey      = "user"
)

// requestID tags every request with an id, reusing the caller's when present
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(lottery.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog logs one line per request
func accessLog(logger lottery.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s) request_id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.Writer.Header().Get(requestIDHeader))
	}
}

// identify resolves the session cookie into an identity when one is present
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.Next()
			return
		}

		email, err := s.auth.ParseSession(token)
		if err != nil {
			s.logger.Debug("ignoring session cookie: %v", err)
			c.Next()
			return
		}

		c.Set(ctxUserKey, email)
		c.Request = c.Request.WithContext(lottery.ContextWithUserID(c.Request.Context(), email))
		c.Next()
	}
}

// requireUser aborts with 401 when no identity was resolved
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == "" {
			s.abortWithError(c, lottery.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserKey)
}
