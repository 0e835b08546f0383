package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	lottery "github.com/kydenul/lotterysim"
)

type startRequest struct {
	Email string `json:"email" binding:"required"`
}

type verifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type slipRequest struct {
	Legs []lottery.Leg `json:"legs"`
}

type deriveRequest struct {
	Base   lottery.Leg  `json:"base"`
	Target lottery.Mode `json:"target"`
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok", "rules": s.settler.GetRules().TableName}
	status := http.StatusOK
	if s.health != nil {
		check := s.health.Check()
		body["circuit_breaker"] = check
		if healthy, _ := check["healthy"].(bool); !healthy {
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, body)
}

func (s *Server) handleAuthStart(c *gin.Context) {
	var req startRequest
	if !s.bind(c, &req) {
		return
	}

	challenge, err := s.auth.StartOTP(c.Request.Context(), req.Email)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	s.setCookie(c, OTPCookie, challenge.Token, time.Until(challenge.ExpiresAt))
	body := gin.H{"ok": true, "email": challenge.Email}
	if challenge.DevCode != "" {
		body["devCode"] = challenge.DevCode
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleAuthVerify(c *gin.Context) {
	var req verifyRequest
	if !s.bind(c, &req) {
		return
	}

	token, err := c.Cookie(OTPCookie)
	if err != nil || token == "" {
		s.abortWithError(c, lottery.ErrTokenInvalid.WithDetails("no pending code, request a new one"))
		return
	}

	session, err := s.auth.VerifyOTP(token, req.Email, req.Code)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	s.clearCookie(c, OTPCookie)
	s.setCookie(c, SessionCookie, session.Token, time.Until(session.ExpiresAt))
	c.JSON(http.StatusOK, gin.H{"ok": true, "email": session.Email})
}

func (s *Server) handleAuthLogout(c *gin.Context) {
	s.clearCookie(c, SessionCookie)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleAuthMe(c *gin.Context) {
	user := currentUser(c)
	if user == "" {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{"email": user}})
}

func (s *Server) handleCoinsMe(c *gin.Context) {
	user := currentUser(c)
	balance, err := s.settler.Balance(c.Request.Context(), user)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": user, "balance": balance})
}

func (s *Server) handleCoinsReset(c *gin.Context) {
	user := currentUser(c)
	balance, err := s.settler.ResetBalance(c.Request.Context(), user)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "email": user, "balance": balance})
}

// handleDraw returns a fresh draw, or replays one when both seed and timestamp are given
func (s *Server) handleDraw(c *gin.Context) {
	seed, timestamp := c.Query("seed"), c.Query("timestamp")

	var draw lottery.Draw
	switch {
	case seed != "" && timestamp != "":
		draw = lottery.GenerateDraw(seed, timestamp)
	case seed != "" || timestamp != "":
		s.abortWithError(c, lottery.ErrInvalidParameters.WithDetails("seed and timestamp must be given together"))
		return
	default:
		var err error
		if draw, err = s.settler.NewDraw(); err != nil {
			s.abortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, draw)
}

func (s *Server) handlePractice(c *gin.Context) {
	var leg lottery.Leg
	if !s.bind(c, &leg) {
		return
	}

	result, err := s.settler.Practice(c.Request.Context(), leg)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	rules := s.settler.GetRules()
	c.JSON(http.StatusOK, gin.H{
		"seed":        result.Seed,
		"timestamp":   result.Timestamp,
		"prizes":      result.Prizes,
		"leg":         result.Leg,
		"win":         result.Leg.TotalHits > 0,
		"multipliers": rules.Multipliers,
	})
}

func (s *Server) handleSettle(c *gin.Context) {
	var req slipRequest
	if !s.bind(c, &req) {
		return
	}

	result, err := s.settler.Settle(c.Request.Context(), currentUser(c), req.Legs)
	if err != nil {
		if errors.Is(err, lottery.ErrInsufficientFunds) && result != nil {
			lotteryErr := s.errHandler.HandleError(c.Request.Context(), err)
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"error":  lotteryErr.Message,
				"code":   lotteryErr.Code,
				"totals": result.Totals,
				"legs":   result.Legs,
			})
			return
		}
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDerive(c *gin.Context) {
	var req deriveRequest
	if !s.bind(c, &req) {
		return
	}

	leg, err := lottery.DeriveLeg(req.Base, req.Target)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leg": leg})
}

// strictJSON is binding.JSON with unknown fields rejected, without touching gin's global decoder flags
type strictJSON struct{}

func (strictJSON) Name() string { return "json" }

func (strictJSON) Bind(req *http.Request, obj any) error {
	if req == nil || req.Body == nil {
		return errors.New("missing request body")
	}
	decoder := json.NewDecoder(req.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(obj); err != nil {
		return err
	}
	if binding.Validator == nil {
		return nil
	}
	return binding.Validator.ValidateStruct(obj)
}

// bind decodes the JSON body strictly, answering 400 itself on failure
func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindWith(v, strictJSON{}); err != nil {
		var lotteryErr *lottery.LotteryError
		if !errors.As(err, &lotteryErr) {
			lotteryErr = lottery.ErrInvalidParameters.WithDetails(err.Error())
		}
		s.abortWithError(c, lotteryErr)
		return false
	}
	return true
}

// abortWithError maps err onto its status; infrastructure and internal failures get a generic message
func (s *Server) abortWithError(c *gin.Context, err error) {
	lotteryErr := s.errHandler.HandleError(c.Request.Context(), err)
	status := lotteryErr.HTTPStatus()

	body := gin.H{"code": lotteryErr.Code}
	if status >= http.StatusInternalServerError {
		body["error"] = "service temporarily unavailable, please try again"
		if status == http.StatusInternalServerError {
			body["error"] = "internal server error"
		}
	} else {
		body["error"] = lotteryErr.Message
		if lotteryErr.Details != "" {
			body["details"] = lotteryErr.Details
		}
		if leg, ok := lotteryErr.Metadata["leg"]; ok {
			body["leg"] = leg
		}
	}
	if lotteryErr.RequestID != "" {
		body["requestId"] = lotteryErr.RequestID
	}

	c.AbortWithStatusJSON(status, body)
}

func (s *Server) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", s.config.SecureCookies, true)
}

func (s *Server) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", s.config.SecureCookies, true)
}
