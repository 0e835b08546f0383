package lottery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMailer keeps the last code per email
type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *recordingMailer) SendCode(_ context.Context, email, code string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[email] = code
	return nil
}

func newTestAuthenticator(mailer Mailer) (*Authenticator, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	auth := NewAuthenticator(DefaultAuthConfig(), mailer, NewSilentLogger())
	auth.SetClock(func() time.Time { return now })
	return auth, &now
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{" Player@Example.COM ", "player@example.com", false},
		{"a@b.co", "a@b.co", false},
		{"no-at-sign.com", "", true},
		{"missing@tld", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			email, err := NormalizeEmail(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, email)
		})
	}
}

func TestAuthenticator_OTPFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("full_flow_with_log_mailer", func(t *testing.T) {
		auth, _ := newTestAuthenticator(NewLogMailer(NewSilentLogger()))

		challenge, err := auth.StartOTP(ctx, "Player@Example.com")
		require.NoError(t, err)
		assert.Equal(t, "player@example.com", challenge.Email)
		assert.Len(t, challenge.DevCode, OTPCodeDigits)
		assert.NotContains(t, challenge.Token, challenge.DevCode)

		session, err := auth.VerifyOTP(challenge.Token, "player@example.com", challenge.DevCode)
		require.NoError(t, err)
		assert.Equal(t, "player@example.com", session.Email)

		email, err := auth.ParseSession(session.Token)
		require.NoError(t, err)
		assert.Equal(t, "player@example.com", email)
	})

	t.Run("real_mailer_hides_code", func(t *testing.T) {
		mailer := &recordingMailer{}
		auth, _ := newTestAuthenticator(mailer)

		challenge, err := auth.StartOTP(ctx, "someone@example.com")
		require.NoError(t, err)
		assert.Empty(t, challenge.DevCode)

		_, err = auth.VerifyOTP(challenge.Token, "someone@example.com", mailer.codes["someone@example.com"])
		assert.NoError(t, err)
	})

	t.Run("wrong_code", func(t *testing.T) {
		auth, _ := newTestAuthenticator(NewLogMailer(nil))

		challenge, err := auth.StartOTP(ctx, "someone@example.com")
		require.NoError(t, err)

		wrong := "100000"
		if challenge.DevCode == wrong {
			wrong = "100001"
		}
		_, err = auth.VerifyOTP(challenge.Token, "someone@example.com", wrong)
		assert.ErrorIs(t, err, ErrOTPMismatch)
	})

	t.Run("other_email", func(t *testing.T) {
		auth, _ := newTestAuthenticator(NewLogMailer(nil))

		challenge, err := auth.StartOTP(ctx, "someone@example.com")
		require.NoError(t, err)

		_, err = auth.VerifyOTP(challenge.Token, "other@example.com", challenge.DevCode)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("expired_code", func(t *testing.T) {
		auth, now := newTestAuthenticator(NewLogMailer(nil))

		challenge, err := auth.StartOTP(ctx, "someone@example.com")
		require.NoError(t, err)

		*now = now.Add(DefaultOTPTTL + time.Second)
		_, err = auth.VerifyOTP(challenge.Token, "someone@example.com", challenge.DevCode)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("otp_token_is_not_a_session", func(t *testing.T) {
		auth, _ := newTestAuthenticator(NewLogMailer(nil))

		challenge, err := auth.StartOTP(ctx, "someone@example.com")
		require.NoError(t, err)

		_, err = auth.ParseSession(challenge.Token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("mailer_failure", func(t *testing.T) {
		auth, _ := newTestAuthenticator(&recordingMailer{err: errors.New("smtp down")})

		_, err := auth.StartOTP(ctx, "someone@example.com")
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	})

	t.Run("invalid_email", func(t *testing.T) {
		auth, _ := newTestAuthenticator(nil)

		_, err := auth.StartOTP(ctx, "not-an-email")
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})
}

func TestAuthenticator_Sessions(t *testing.T) {
	t.Run("expired_session", func(t *testing.T) {
		auth, now := newTestAuthenticator(nil)

		session, err := auth.IssueSession("someone@example.com")
		require.NoError(t, err)

		*now = now.Add(DefaultSessionTTL + time.Minute)
		_, err = auth.ParseSession(session.Token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("foreign_secret", func(t *testing.T) {
		other := DefaultAuthConfig()
		other.Secret = "another-secret"
		forger := NewAuthenticator(other, nil, NewSilentLogger())
		auth, _ := newTestAuthenticator(nil)

		session, err := forger.IssueSession("someone@example.com")
		require.NoError(t, err)

		_, err = auth.ParseSession(session.Token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("empty_or_garbage", func(t *testing.T) {
		auth, _ := newTestAuthenticator(nil)

		_, err := auth.ParseSession("")
		assert.ErrorIs(t, err, ErrUnauthorized)

		_, err = auth.ParseSession("not.a.jwt")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestAuthenticator_RateLimit(t *testing.T) {
	ctx := context.Background()
	config := DefaultAuthConfig()
	config.OTPBurst = 2
	config.OTPRatePerMinute = 1
	auth := NewAuthenticator(config, NewLogMailer(nil), NewSilentLogger())

	for i := 0; i < 2; i++ {
		_, err := auth.StartOTP(ctx, "spam@example.com")
		require.NoError(t, err)
	}

	_, err := auth.StartOTP(ctx, "spam@example.com")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	// 限流按邮箱区分
	_, err = auth.StartOTP(ctx, "other@example.com")
	assert.NoError(t, err)
}

func TestAuthenticator_VerifyRateLimit(t *testing.T) {
	ctx := context.Background()
	config := DefaultAuthConfig()
	config.VerifyBurst = 3
	auth := NewAuthenticator(config, NewLogMailer(nil), NewSilentLogger())

	challenge, err := auth.StartOTP(ctx, "guess@example.com")
	require.NoError(t, err)
	wrong := "100000"
	if challenge.DevCode == wrong {
		wrong = "100001"
	}

	for i := 0; i < config.VerifyBurst; i++ {
		_, err := auth.VerifyOTP(challenge.Token, "guess@example.com", wrong)
		require.ErrorIs(t, err, ErrOTPMismatch)
	}

	// 额度用尽后连正确的验证码也被拒绝
	_, err = auth.VerifyOTP(challenge.Token, "guess@example.com", challenge.DevCode)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	// 请求验证码与校验分开计数
	_, err = auth.StartOTP(ctx, "guess@example.com")
	assert.NoError(t, err)
}

func TestAuthenticator_CleanupLimiters(t *testing.T) {
	ctx := context.Background()
	auth, now := newTestAuthenticator(NewLogMailer(nil))

	_, err := auth.StartOTP(ctx, "idle@example.com")
	require.NoError(t, err)
	*now = now.Add(DefaultLimiterIdleTTL / 2)
	_, err = auth.StartOTP(ctx, "busy@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, auth.limiterCount())

	// 未到空闲时长, 不清理
	assert.Equal(t, 0, auth.CleanupLimiters())

	*now = now.Add(DefaultLimiterIdleTTL/2 + time.Second)
	assert.Equal(t, 1, auth.CleanupLimiters())
	assert.Equal(t, 1, auth.limiterCount())

	*now = now.Add(DefaultLimiterIdleTTL)
	assert.Equal(t, 1, auth.CleanupLimiters())
	assert.Equal(t, 0, auth.limiterCount())

	t.Run("evicted_limiter_starts_fresh", func(t *testing.T) {
		for i := 0; i < DefaultOTPBurst; i++ {
			_, err := auth.StartOTP(ctx, "again@example.com")
			require.NoError(t, err)
		}
		_, err := auth.StartOTP(ctx, "again@example.com")
		require.ErrorIs(t, err, ErrRateLimitExceeded)

		*now = now.Add(DefaultLimiterIdleTTL + time.Second)
		require.Equal(t, 1, auth.CleanupLimiters())

		_, err = auth.StartOTP(ctx, "again@example.com")
		assert.NoError(t, err)
	})
}

func TestAuthenticator_StartCleanup(t *testing.T) {
	config := DefaultAuthConfig()
	config.LimiterIdleTTL = time.Millisecond
	auth := NewAuthenticator(config, NewLogMailer(nil), NewSilentLogger())

	_, err := auth.StartOTP(context.Background(), "ticker@example.com")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	auth.StartCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return auth.limiterCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestGenerateOTPCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := generateOTPCode()
		require.NoError(t, err)
		require.Len(t, code, OTPCodeDigits)
		assert.NotEqual(t, byte('0'), code[0])
	}
}
