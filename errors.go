package lottery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 错误代码常量
const (
	// 系统级错误 (1000-1999)
	ErrCodeSystem             ErrorCode = "LOTTERY_1000"
	ErrCodeStoreUnavailable   ErrorCode = "LOTTERY_1001"
	ErrCodeStoreTimeout       ErrorCode = "LOTTERY_1002"
	ErrCodeDrawFailed         ErrorCode = "LOTTERY_1003"
	ErrCodeConfigInvalid      ErrorCode = "LOTTERY_1004"
	ErrCodeServiceUnavailable ErrorCode = "LOTTERY_1005"

	// 校验错误 (2000-2999)
	ErrCodeInvalidParameters       ErrorCode = "LOTTERY_2000"
	ErrCodeInvalidMode             ErrorCode = "LOTTERY_2001"
	ErrCodeInvalidStake            ErrorCode = "LOTTERY_2002"
	ErrCodeEmptySelections         ErrorCode = "LOTTERY_2003"
	ErrCodeInvalidPlacements       ErrorCode = "LOTTERY_2004"
	ErrCodeForbiddenPlacement      ErrorCode = "LOTTERY_2005"
	ErrCodeInvalidSelectionPricing ErrorCode = "LOTTERY_2006"
	ErrCodeEmptySlip               ErrorCode = "LOTTERY_2007"
	ErrCodeInvalidPlacementPricing ErrorCode = "LOTTERY_2008"
	ErrCodeUnsupportedDerivation   ErrorCode = "LOTTERY_2009"
	ErrCodeInvalidEmail            ErrorCode = "LOTTERY_2010"

	// 锁相关错误 (3000-3999)
	ErrCodeLockAcquisitionFailed ErrorCode = "LOTTERY_3000"
	ErrCodeLockTimeout           ErrorCode = "LOTTERY_3001"

	// 身份相关错误 (4000-4999)
	ErrCodeUnauthorized ErrorCode = "LOTTERY_4000"
	ErrCodeTokenExpired ErrorCode = "LOTTERY_4002"
	ErrCodeTokenInvalid ErrorCode = "LOTTERY_4003"
	ErrCodeOTPMismatch  ErrorCode = "LOTTERY_4006"

	// 限流相关错误 (5000-5999)
	ErrCodeRateLimitExceeded  ErrorCode = "LOTTERY_5000"
	ErrCodeCircuitBreakerOpen ErrorCode = "LOTTERY_5002"

	// 资金相关错误 (7000-7999)
	ErrCodeInsufficientFunds ErrorCode = "LOTTERY_7000"
)

// ErrorCategory groups error codes by how a caller should react to them
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryUnauthorized   ErrorCategory = "unauthorized"
	CategoryInsufficient   ErrorCategory = "insufficient_funds"
	CategoryThrottled      ErrorCategory = "throttled"
	CategoryInfrastructure ErrorCategory = "infrastructure"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorSeverity 错误严重程度
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
	SeverityInfo     ErrorSeverity = "info"
)

// LotteryError 增强的错误类型
type LotteryError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    string         `json:"details,omitempty"`
	Severity   ErrorSeverity  `json:"severity"`
	Timestamp  time.Time      `json:"timestamp"`
	RequestID  string         `json:"request_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	StackTrace string         `json:"-"`
	Cause      error          `json:"-"`
	Retryable  bool           `json:"retryable"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Error 实现 error 接口
func (e *LotteryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *LotteryError) Unwrap() error {
	return e.Cause
}

// Is 实现 errors.Is 接口
func (e *LotteryError) Is(target error) bool {
	if t, ok := target.(*LotteryError); ok {
		return e.Code == t.Code
	}
	return false
}

// clone copies the error so predefined instances are never mutated by With* calls
func (e *LotteryError) clone() *LotteryError {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	c.Timestamp = time.Now()
	return &c
}

// WithCause 添加原因错误
func (e *LotteryError) WithCause(cause error) *LotteryError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithDetails 添加详细信息
func (e *LotteryError) WithDetails(details string) *LotteryError {
	c := e.clone()
	c.Details = details
	return c
}

// WithRequestID 添加请求ID
func (e *LotteryError) WithRequestID(requestID string) *LotteryError {
	c := e.clone()
	c.RequestID = requestID
	return c
}

// WithUserID 添加用户ID
func (e *LotteryError) WithUserID(userID string) *LotteryError {
	c := e.clone()
	c.UserID = userID
	return c
}

// WithOperation 添加操作信息
func (e *LotteryError) WithOperation(operation string) *LotteryError {
	c := e.clone()
	c.Operation = operation
	return c
}

// WithMetadata 添加元数据
func (e *LotteryError) WithMetadata(key string, value any) *LotteryError {
	c := e.clone()
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
	return c
}

// WithStackTrace 添加堆栈跟踪
func (e *LotteryError) WithStackTrace() *LotteryError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	e.StackTrace = string(buf[:n])
	return e
}

// Category maps the error code onto the error taxonomy
func (e *LotteryError) Category() ErrorCategory {
	switch {
	case e.Code == ErrCodeInsufficientFunds:
		return CategoryInsufficient
	case e.Code == ErrCodeStoreUnavailable, e.Code == ErrCodeStoreTimeout,
		e.Code == ErrCodeCircuitBreakerOpen, e.Code == ErrCodeServiceUnavailable,
		e.Code == ErrCodeLockAcquisitionFailed, e.Code == ErrCodeLockTimeout:
		return CategoryInfrastructure
	case e.Code == ErrCodeRateLimitExceeded:
		return CategoryThrottled
	case strings.HasPrefix(string(e.Code), "LOTTERY_2"):
		return CategoryValidation
	case strings.HasPrefix(string(e.Code), "LOTTERY_4"):
		return CategoryUnauthorized
	default:
		return CategoryInternal
	}
}

// HTTPStatus returns the status code the error is reported with at the HTTP boundary
func (e *LotteryError) HTTPStatus() int {
	switch e.Category() {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryInsufficient:
		return http.StatusUnprocessableEntity
	case CategoryThrottled:
		return http.StatusTooManyRequests
	case CategoryInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewError 创建新的错误
func NewError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: false,
	}
}

// NewRetryableError 创建可重试的错误
func NewRetryableError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: true,
	}
}

// NewCriticalError 创建严重错误
func NewCriticalError(code ErrorCode, message string) *LotteryError {
	err := &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityCritical,
		Timestamp: time.Now(),
		Retryable: false,
	}
	return err.WithStackTrace()
}

// 预定义的错误实例
var (
	// 系统级错误
	ErrSystemError        = NewCriticalError(ErrCodeSystem, "system error occurred")
	ErrStoreUnavailable   = NewRetryableError(ErrCodeStoreUnavailable, "balance store unavailable")
	ErrStoreTimeout       = NewRetryableError(ErrCodeStoreTimeout, "balance store operation timeout")
	ErrDrawFailed         = NewCriticalError(ErrCodeDrawFailed, "failed to seed draw")
	ErrConfigInvalid      = NewCriticalError(ErrCodeConfigInvalid, "configuration is invalid")
	ErrServiceUnavailable = NewRetryableError(ErrCodeServiceUnavailable, "service temporarily unavailable")

	// 校验错误
	ErrInvalidParameters       = NewError(ErrCodeInvalidParameters, "invalid parameters provided")
	ErrInvalidMode             = NewError(ErrCodeInvalidMode, "invalid mode")
	ErrInvalidStake            = NewError(ErrCodeInvalidStake, "invalid stake")
	ErrEmptySelections         = NewError(ErrCodeEmptySelections, "leg has no selections")
	ErrInvalidPlacements       = NewError(ErrCodeInvalidPlacements, "invalid placements")
	ErrForbiddenPlacement      = NewError(ErrCodeForbiddenPlacement, "placement 7 is not allowed in thousand mode")
	ErrInvalidSelectionPricing = NewError(ErrCodeInvalidSelectionPricing, "invalid selection pricing")
	ErrEmptySlip               = NewError(ErrCodeEmptySlip, "slip has no legs")
	ErrInvalidPlacementPricing = NewError(ErrCodeInvalidPlacementPricing, "invalid placement pricing")
	ErrUnsupportedDerivation   = NewError(ErrCodeUnsupportedDerivation, "leg cannot be derived into the requested mode")
	ErrInvalidEmail            = NewError(ErrCodeInvalidEmail, "invalid email")

	// 锁相关错误
	ErrLockAcquisitionFailed = NewRetryableError(ErrCodeLockAcquisitionFailed, "failed to acquire settlement lock")
	ErrLockTimeout           = NewRetryableError(ErrCodeLockTimeout, "settlement lock acquisition timeout")

	// 身份相关错误
	ErrUnauthorized = NewError(ErrCodeUnauthorized, "unauthorized: sign in to play")
	ErrTokenExpired = NewError(ErrCodeTokenExpired, "token has expired")
	ErrTokenInvalid = NewError(ErrCodeTokenInvalid, "invalid token")
	ErrOTPMismatch  = NewError(ErrCodeOTPMismatch, "incorrect code")

	// 限流相关错误
	ErrRateLimitExceeded  = NewRetryableError(ErrCodeRateLimitExceeded, "rate limit exceeded")
	ErrCircuitBreakerOpen = NewRetryableError(ErrCodeCircuitBreakerOpen, "circuit breaker is open")

	// 资金相关错误
	ErrInsufficientFunds = NewError(ErrCodeInsufficientFunds, "insufficient balance for the total cost")
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
)

// ContextWithRequestID attaches a request id picked up by the error handler
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithUserID attaches the acting identity picked up by the error handler
func ContextWithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// ErrorHandler 错误处理器接口
type ErrorHandler interface {
	HandleError(ctx context.Context, err error) *LotteryError
}

// DefaultErrorHandler 默认错误处理器
type DefaultErrorHandler struct {
	logger Logger
}

// NewDefaultErrorHandler 创建默认错误处理器
func NewDefaultErrorHandler(logger Logger) *DefaultErrorHandler {
	return &DefaultErrorHandler{logger: logger}
}

// HandleError 处理错误
func (h *DefaultErrorHandler) HandleError(ctx context.Context, err error) *LotteryError {
	if err == nil {
		return nil
	}

	// 转换为 LotteryError
	var lotteryErr *LotteryError
	if errors.As(err, &lotteryErr) {
		lotteryErr = lotteryErr.clone()
	} else {
		lotteryErr = NewError(ErrCodeSystem, "internal error").WithCause(err)
		lotteryErr.Severity = SeverityHigh
	}

	if id, ok := ctx.Value(requestIDKey).(string); ok {
		lotteryErr.RequestID = id
	}
	if id, ok := ctx.Value(userIDKey).(string); ok {
		lotteryErr.UserID = id
	}

	h.logError(lotteryErr)

	return lotteryErr
}

// logError 记录错误日志
func (h *DefaultErrorHandler) logError(err *LotteryError) {
	cause := ""
	if err.Cause != nil {
		cause = err.Cause.Error()
	}

	switch err.Severity {
	case SeverityCritical, SeverityHigh:
		h.logger.Error("%s error: %s request_id=%s user=%s cause=%s",
			err.Severity, err.Error(), err.RequestID, err.UserID, cause)
	case SeverityMedium:
		if err.Category() == CategoryInfrastructure || err.Category() == CategoryInternal {
			h.logger.Error("Settlement error: %s request_id=%s user=%s cause=%s",
				err.Error(), err.RequestID, err.UserID, cause)
			return
		}
		h.logger.Debug("Client error: %s request_id=%s user=%s", err.Error(), err.RequestID, err.UserID)
	default:
		h.logger.Info("Low severity error: %s", err.Error())
	}
}

// IsRetryableError 检查是否为可重试错误
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var lotteryErr *LotteryError
	if errors.As(err, &lotteryErr) {
		return lotteryErr.Retryable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"broken pipe",
		"i/o timeout",
		"redis: connection pool timeout",
		"redis: client is closed",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// storeError wraps an infrastructure failure from a balance store call
func storeError(op string, err error) *LotteryError {
	var lotteryErr *LotteryError
	if errors.As(err, &lotteryErr) {
		return lotteryErr.WithOperation(op)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrStoreTimeout.WithOperation(op).WithCause(err)
	}
	return ErrStoreUnavailable.WithOperation(op).WithCause(err)
}
