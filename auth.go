package lottery

import (
	"cmp"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

const (
	tokenKindSession = "session"
	tokenKindOTP     = "otp"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Mailer delivers one-time codes
type Mailer interface {
	SendCode(ctx context.Context, email, code string) error
}

// LogMailer only logs the code; with it the code is also handed back to the caller
type LogMailer struct {
	logger Logger
}

// NewLogMailer creates a development mailer
func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = &SilentLogger{}
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendCode(_ context.Context, email, code string) error {
	m.logger.Info("one-time code for %s: %s", email, code)
	return nil
}

// OTPChallenge is a started sign-in waiting for its code
type OTPChallenge struct {
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	DevCode   string    `json:"devCode,omitempty"`
}

// Session is a verified sign-in
type Session struct {
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type authClaims struct {
	Email    string `json:"email"`
	Kind     string `json:"kind"`
	CodeHash string `json:"code_hash,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator runs passwordless email sign-in: a signed, stateless one-time-code token
// followed by a signed session token. Identities are lowercased emails.
type Authenticator struct {
	secret     []byte
	sessionTTL time.Duration
	otpTTL     time.Duration
	mailer     Mailer
	logger     Logger
	now        func() time.Time

	mu          sync.Mutex
	limiters    map[string]*limiterEntry
	otpRate     rate.Limit
	otpBurst    int
	verifyRate  rate.Limit
	verifyBurst int
	idleTTL     time.Duration
}

// limiterEntry 记录限流器最后一次使用时间, 供空闲清理
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewAuthenticator creates an authenticator from its configuration
func NewAuthenticator(config *AuthConfig, mailer Mailer, logger Logger) *Authenticator {
	if config == nil {
		config = DefaultAuthConfig()
	}
	if logger == nil {
		logger = &SilentLogger{}
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	return &Authenticator{
		secret:     []byte(config.Secret),
		sessionTTL: config.SessionTTL,
		otpTTL:     config.OTPTTL,
		mailer:     mailer,
		logger:     logger,
		now:        time.Now,
		limiters:   make(map[string]*limiterEntry),

		otpRate:     perMinute(config.OTPRatePerMinute),
		otpBurst:    max(config.OTPBurst, 1),
		verifyRate:  perMinute(config.VerifyRatePerMinute),
		verifyBurst: max(config.VerifyBurst, 1),
		idleTTL:     cmp.Or(config.LimiterIdleTTL, DefaultLimiterIdleTTL),
	}
}

func perMinute(n int) rate.Limit {
	return rate.Every(time.Minute / time.Duration(max(n, 1)))
}

// SetClock overrides the time source used for issuing and validating tokens
func (a *Authenticator) SetClock(now func() time.Time) { a.now = now }

// NormalizeEmail validates and lowercases an email address
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// StartOTP issues a six digit code for email, delivers it and returns the signed challenge
func (a *Authenticator) StartOTP(ctx context.Context, email string) (*OTPChallenge, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if !a.allow(limiterKindOTP, email) {
		a.logger.Info("otp throttled: user=%s", identityHash(email))
		return nil, ErrRateLimitExceeded.WithDetails("too many codes requested, try again later")
	}

	code, err := generateOTPCode()
	if err != nil {
		return nil, ErrSystemError.WithCause(err)
	}

	expires := a.now().Add(a.otpTTL)
	token, err := a.sign(authClaims{
		Email:    email,
		Kind:     tokenKindOTP,
		CodeHash: a.hashCode(email, code),
	}, expires)
	if err != nil {
		return nil, err
	}

	if err := a.mailer.SendCode(ctx, email, code); err != nil {
		a.logger.Error("otp delivery failed: user=%s, error=%v", identityHash(email), err)
		return nil, ErrServiceUnavailable.WithDetails("failed to send the code").WithCause(err)
	}

	challenge := &OTPChallenge{Email: email, Token: token, ExpiresAt: expires}
	if _, dev := a.mailer.(*LogMailer); dev {
		challenge.DevCode = code
	}
	return challenge, nil
}

// VerifyOTP checks code against the challenge token and issues a session
func (a *Authenticator) VerifyOTP(token, email, code string) (*Session, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if !a.allow(limiterKindVerify, email) {
		a.logger.Info("verify throttled: user=%s", identityHash(email))
		return nil, ErrRateLimitExceeded.WithDetails("too many attempts, try again later")
	}

	claims, err := a.parse(token, tokenKindOTP)
	if err != nil {
		return nil, err
	}
	if claims.Email != email {
		return nil, ErrTokenInvalid.WithDetails("code was issued for another email")
	}

	want := []byte(claims.CodeHash)
	got := []byte(a.hashCode(email, strings.TrimSpace(code)))
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return nil, ErrOTPMismatch
	}

	return a.IssueSession(email)
}

// IssueSession signs a session token for email
func (a *Authenticator) IssueSession(email string) (*Session, error) {
	expires := a.now().Add(a.sessionTTL)
	token, err := a.sign(authClaims{Email: email, Kind: tokenKindSession}, expires)
	if err != nil {
		return nil, err
	}
	return &Session{Email: email, Token: token, ExpiresAt: expires}, nil
}

// ParseSession returns the identity a session token was issued to
func (a *Authenticator) ParseSession(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	claims, err := a.parse(token, tokenKindSession)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

func (a *Authenticator) sign(claims authClaims, expires time.Time) (string, error) {
	now := a.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", ErrSystemError.WithDetails("failed to sign token").WithCause(err)
	}
	return signed, nil
}

func (a *Authenticator) parse(token, kind string) (*authClaims, error) {
	claims := &authClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired.WithCause(err)
		}
		return nil, ErrTokenInvalid.WithCause(err)
	}
	if claims.Kind != kind || claims.Email == "" {
		return nil, ErrTokenInvalid.WithDetails("unexpected token kind")
	}
	return claims, nil
}

// hashCode binds a code to its email so the challenge token never carries the code itself
func (a *Authenticator) hashCode(email, code string) string {
	sum := sha256.Sum256([]byte(email + ":" + code + ":" + string(a.secret)))
	return hex.EncodeToString(sum[:])
}

const (
	limiterKindOTP    = "otp"
	limiterKindVerify = "verify"
)

// allow takes one token from the email's limiter of the given kind
func (a *Authenticator) allow(kind, email string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	key := kind + ":" + email
	entry, ok := a.limiters[key]
	if !ok {
		limit, burst := a.otpRate, a.otpBurst
		if kind == limiterKindVerify {
			limit, burst = a.verifyRate, a.verifyBurst
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(limit, burst)}
		a.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// CleanupLimiters drops limiters idle for longer than the configured idle ttl and
// returns how many were removed
func (a *Authenticator) CleanupLimiters() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-a.idleTTL)
	removed := 0
	for key, entry := range a.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(a.limiters, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs CleanupLimiters every interval until ctx is done
func (a *Authenticator) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultLimiterCleanup
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := a.CleanupLimiters(); n > 0 {
					a.logger.Debug("evicted idle limiters: count=%d", n)
				}
			}
		}
	}()
}

func (a *Authenticator) limiterCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.limiters)
}

// generateOTPCode returns a uniformly random code of OTPCodeDigits digits without a leading zero
func generateOTPCode() (string, error) {
	low := int64(1)
	for range OTPCodeDigits - 1 {
		low *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+low, 10), nil
}
