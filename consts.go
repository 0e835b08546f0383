package lottery

import "time"

const (
	// PrizeCount is the number of prize slots produced by every draw
	PrizeCount = 7

	// IndependentPrizeCount is the number of slots read straight from the draw hash
	IndependentPrizeCount = 5

	// ThousandModulus bounds thousand-kind prize values (0..9999)
	ThousandModulus = 10000

	// HundredModulus bounds hundred-kind prize values (0..999)
	HundredModulus = 1000

	// TenModulus extracts the last two digits of a prize value
	TenModulus = 100

	// GroupCount is the number of groups the 100 tens are partitioned into
	GroupCount = 25

	// TensPerGroup is the number of tens every group holds
	TensPerGroup = 4

	// hashChunkSize is the number of hex characters consumed per independent prize
	hashChunkSize = 8

	// TimestampLayout renders draw timestamps as UTC ISO-8601 with milliseconds
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

const (
	// DerivationSumMod tags the sixth prize
	DerivationSumMod = "sum-mod"

	// DerivationProductHundred tags the seventh prize
	DerivationProductHundred = "penultimate-hundred-of-product"
)

const (
	// DefaultMaxStake is the largest stake accepted for a single leg
	DefaultMaxStake = "50.00"

	// DefaultStartingBalance is credited to identities without a stored balance
	DefaultStartingBalance = "1000.00"

	// DefaultMultiplierTable is the payout table used when none is configured
	DefaultMultiplierTable = MultiplierTableStandard

	// DefaultPlacementSevenPolicy is the placement-7 policy used when none is configured
	DefaultPlacementSevenPolicy = PlacementSevenReject

	// StakeDecimalPlaces is the maximum number of decimal places a stake may carry
	StakeDecimalPlaces = 2

	// CentsPerCoin converts coins to integer cents
	CentsPerCoin = 100
)

const (
	// DefaultStoreTimeout bounds every balance store call made during settlement
	DefaultStoreTimeout = 2 * time.Second

	// DefaultLockTimeout is the default timeout for acquiring a per-user settlement lock
	DefaultLockTimeout = 5 * time.Second

	// DefaultLockExpiration is the default expiration time for distributed locks
	DefaultLockExpiration = 10 * time.Second

	// DefaultRetryAttempts is the default number of lock acquisition retries
	DefaultRetryAttempts = 3

	// DefaultRetryInterval is the default interval between lock acquisition retries
	DefaultRetryInterval = 50 * time.Millisecond

	// MaxRetryAttempts is the maximum number of retry attempts allowed
	MaxRetryAttempts = 10

	// MinStoreTimeout is the minimum store timeout allowed
	MinStoreTimeout = 10 * time.Millisecond

	// MaxStoreTimeout is the maximum store timeout allowed
	MaxStoreTimeout = 1 * time.Minute

	// MinLockTimeout is the minimum lock timeout allowed
	MinLockTimeout = 100 * time.Millisecond

	// MaxLockTimeout is the maximum lock timeout allowed
	MaxLockTimeout = 5 * time.Minute
)

const (
	// LockKeyPrefix is the prefix for Redis lock keys
	LockKeyPrefix = "lottery:lock:"

	// BalanceKeyPrefix is the prefix for Redis and badger balance keys
	BalanceKeyPrefix = "lottery:balance:"

	// SettlementLockPrefix namespaces per-user settlement locks
	SettlementLockPrefix = "settle:"

	// identityHashLength is the number of hex characters of the identity hash used in keys
	identityHashLength = 20
)

const (
	// StoreBackendMemory keeps balances in process memory
	StoreBackendMemory = "memory"

	// StoreBackendRedis keeps balances in Redis
	StoreBackendRedis = "redis"

	// StoreBackendBadger keeps balances in an embedded badger database
	StoreBackendBadger = "badger"

	// DefaultBadgerPath is the default directory of the badger balance database
	DefaultBadgerPath = "./data/balances"
)

const (
	// DefaultCircuitBreakerName is the default name for Circuit Breaker
	DefaultCircuitBreakerName = "balance-store"

	// DefaultCircuitBreakerMaxRequests is the default max requests
	DefaultCircuitBreakerMaxRequests = 3

	// DefaultCircuitBreakerInterval is the default interval
	DefaultCircuitBreakerInterval = 60 * time.Second

	// DefaultCircuitBreakerTimeout is the default timeout
	DefaultCircuitBreakerTimeout = 30 * time.Second

	// DefaultCircuitBreakerFailureRatio is the default failure ratio
	DefaultCircuitBreakerFailureRatio = 0.6

	// DefaultCircuitBreakerMinRequests is the default min requests
	DefaultCircuitBreakerMinRequests = 3

	// DefaultCircuitBreakerOnStateChange is the default on state change
	DefaultCircuitBreakerOnStateChange = true
)

const (
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPassword     = ""
	DefaultRedisDB           = 0
	DefaultRedisPoolSize     = 50
	DefaultRedisMinIdleConns = 10
	DefaultRedisMaxRetries   = 3
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisPoolTimeout  = 4 * time.Second
)

const (
	DefaultServerAddr         = ":8080"
	DefaultServerReadTimeout  = 10 * time.Second
	DefaultServerWriteTimeout = 10 * time.Second

	DefaultSessionTTL          = 7 * 24 * time.Hour
	DefaultOTPTTL              = 5 * time.Minute
	DefaultOTPRatePerMinute    = 5
	DefaultOTPBurst            = 3
	DefaultVerifyRatePerMinute = 10
	DefaultVerifyBurst         = 5
	DefaultLimiterIdleTTL      = 15 * time.Minute
	DefaultLimiterCleanup      = time.Minute
	DefaultAuthSecret          = "dev-secret"
	OTPCodeDigits              = 6

	DefaultLogLevel  = "info"
	DefaultLogFormat = "tint"
)
