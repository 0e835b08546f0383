package lottery

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// Config 生产环境配置结构
type Config struct {
	// 规则配置
	Rules *RulesConfig `mapstructure:"rules"`

	// 结算配置
	Settlement *SettlementConfig `mapstructure:"settlement"`

	// 余额存储配置
	Store *StoreConfig `mapstructure:"store"`

	// Redis 配置
	Redis *RedisConfig `mapstructure:"redis"`

	// 熔断器配置
	CircuitBreaker *CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// HTTP 服务配置
	Server *ServerConfig `mapstructure:"server"`

	// 登录配置
	Auth *AuthConfig `mapstructure:"auth"`

	// 日志配置
	Log *LogConfig `mapstructure:"log"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Rules == nil || c.Settlement == nil || c.Store == nil {
		return ErrConfigInvalid.WithDetails("rules, settlement and store sections are required")
	}

	// 规则
	if _, err := NewRules(c.Rules); err != nil {
		return err
	}

	// 结算
	s := c.Settlement
	if s.StoreTimeout < MinStoreTimeout || s.StoreTimeout > MaxStoreTimeout {
		return ErrConfigInvalid.WithDetails(fmt.Sprintf("store timeout %s out of range", s.StoreTimeout))
	}
	if s.LockTimeout < MinLockTimeout || s.LockTimeout > MaxLockTimeout {
		return ErrConfigInvalid.WithDetails(fmt.Sprintf("lock timeout %s out of range", s.LockTimeout))
	}
	if s.LockExpiration <= 0 {
		return ErrConfigInvalid.WithDetails("lock expiration must be positive")
	}
	if s.RetryAttempts < 0 || s.RetryAttempts > MaxRetryAttempts {
		return ErrConfigInvalid.WithDetails(fmt.Sprintf("retry attempts %d out of range", s.RetryAttempts))
	}
	if s.RetryInterval < 0 {
		return ErrConfigInvalid.WithDetails("retry interval cannot be negative")
	}

	// 存储
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendBadger:
		if c.Store.BadgerPath == "" {
			return ErrConfigInvalid.WithDetails("badger path is required")
		}
	case StoreBackendRedis:
		if c.Redis == nil || c.Redis.Addr == "" {
			return ErrConfigInvalid.WithDetails("redis address is required")
		}
		if c.Redis.PoolSize <= 0 {
			return ErrConfigInvalid.WithDetails("redis pool size must be positive")
		}
	default:
		return ErrConfigInvalid.WithDetails(fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}

	if c.Auth != nil {
		if c.Auth.Secret == "" {
			return ErrConfigInvalid.WithDetails("auth secret is required")
		}
		if c.Auth.SessionTTL <= 0 || c.Auth.OTPTTL <= 0 {
			return ErrConfigInvalid.WithDetails("auth ttls must be positive")
		}
		if c.Auth.OTPRatePerMinute <= 0 || c.Auth.OTPBurst <= 0 {
			return ErrConfigInvalid.WithDetails("otp rate and burst must be positive")
		}
		if c.Auth.VerifyRatePerMinute <= 0 || c.Auth.VerifyBurst <= 0 {
			return ErrConfigInvalid.WithDetails("verify rate and burst must be positive")
		}
		if c.Auth.LimiterIdleTTL <= 0 {
			return ErrConfigInvalid.WithDetails("limiter idle ttl must be positive")
		}
	}

	if c.Log != nil {
		switch strings.ToLower(c.Log.Level) {
		case "", "debug", "info", "warn", "warning", "error":
		default:
			return ErrConfigInvalid.WithDetails(fmt.Sprintf("unknown log level %q", c.Log.Level))
		}
	}

	return nil
}

// RulesConfig 规则配置; 金额以字符串表示, 避免浮点误差
type RulesConfig struct {
	MultiplierTable string `mapstructure:"multiplier_table"`
	MaxStake        string `mapstructure:"max_stake"`
	StartingBalance string `mapstructure:"starting_balance"`
	PlacementSeven  string `mapstructure:"placement_seven"`
}

// DefaultRulesConfig 返回默认规则配置
func DefaultRulesConfig() *RulesConfig {
	return &RulesConfig{
		MultiplierTable: string(DefaultMultiplierTable),
		MaxStake:        DefaultMaxStake,
		StartingBalance: DefaultStartingBalance,
		PlacementSeven:  string(DefaultPlacementSevenPolicy),
	}
}

// SettlementConfig 结算配置
type SettlementConfig struct {
	StoreTimeout   time.Duration `mapstructure:"store_timeout"`
	LockTimeout    time.Duration `mapstructure:"lock_timeout"`
	LockExpiration time.Duration `mapstructure:"lock_expiration"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
}

// DefaultSettlementConfig 返回默认结算配置
func DefaultSettlementConfig() *SettlementConfig {
	return &SettlementConfig{
		StoreTimeout:   DefaultStoreTimeout,
		LockTimeout:    DefaultLockTimeout,
		LockExpiration: DefaultLockExpiration,
		RetryAttempts:  DefaultRetryAttempts,
		RetryInterval:  DefaultRetryInterval,
	}
}

// StoreConfig 余额存储配置
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	BadgerPath string `mapstructure:"badger_path"`
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{Backend: StoreBackendMemory, BadgerPath: DefaultBadgerPath}
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接配置
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 连接池配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	// 超时配置
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxRequests   uint32        `mapstructure:"max_requests"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	MinRequests   uint32        `mapstructure:"min_requests"`
	OnStateChange bool          `mapstructure:"on_state_change"`
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:       true,
		Name:          DefaultCircuitBreakerName,
		MaxRequests:   DefaultCircuitBreakerMaxRequests,
		Interval:      DefaultCircuitBreakerInterval,
		Timeout:       DefaultCircuitBreakerTimeout,
		FailureRatio:  DefaultCircuitBreakerFailureRatio,
		MinRequests:   DefaultCircuitBreakerMinRequests,
		OnStateChange: DefaultCircuitBreakerOnStateChange,
	}
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
}

// DefaultServerConfig 返回默认服务配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:         DefaultServerAddr,
		ReadTimeout:  DefaultServerReadTimeout,
		WriteTimeout: DefaultServerWriteTimeout,
	}
}

// AuthConfig 邮箱验证码登录配置
type AuthConfig struct {
	Secret           string        `mapstructure:"secret"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	OTPTTL           time.Duration `mapstructure:"otp_ttl"`
	OTPRatePerMinute int           `mapstructure:"otp_rate_per_minute"`
	OTPBurst         int           `mapstructure:"otp_burst"`

	VerifyRatePerMinute int           `mapstructure:"verify_rate_per_minute"`
	VerifyBurst         int           `mapstructure:"verify_burst"`
	LimiterIdleTTL      time.Duration `mapstructure:"limiter_idle_ttl"` // 空闲超过该时长的限流器被清理
}

// DefaultAuthConfig 返回默认登录配置
func DefaultAuthConfig() *AuthConfig {
	return &AuthConfig{
		Secret:           DefaultAuthSecret,
		SessionTTL:       DefaultSessionTTL,
		OTPTTL:           DefaultOTPTTL,
		OTPRatePerMinute: DefaultOTPRatePerMinute,
		OTPBurst:         DefaultOTPBurst,

		VerifyRatePerMinute: DefaultVerifyRatePerMinute,
		VerifyBurst:         DefaultVerifyBurst,
		LimiterIdleTTL:      DefaultLimiterIdleTTL,
	}
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig 返回完整的默认配置
func DefaultConfig() *Config {
	return &Config{
		Rules:          DefaultRulesConfig(),
		Settlement:     DefaultSettlementConfig(),
		Store:          DefaultStoreConfig(),
		Redis:          DefaultRedisConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Server:         DefaultServerConfig(),
		Auth:           DefaultAuthConfig(),
		Log:            &LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// ConfigManager 配置管理器
type ConfigManager struct {
	viper  *viper.Viper
	mu     sync.RWMutex
	config *Config
	logger Logger
}

// NewConfigManager 创建配置管理器
func NewConfigManager() *ConfigManager {
	return NewConfigManagerWithLogger(NewDefaultLogger())
}

// NewConfigManagerWithLogger 创建配置管理器, 使用自定义日志
func NewConfigManagerWithLogger(logger Logger) *ConfigManager {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lotterysim")
	v.AddConfigPath("$HOME/.lotterysim")

	// 设置环境变量前缀
	v.SetEnvPrefix("LOTTERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if logger == nil {
		logger = &SilentLogger{}
	}

	return &ConfigManager{
		viper:  v,
		logger: logger,
	}
}

// SetConfigFile 使用指定的配置文件, 而不是按路径搜索
func (cm *ConfigManager) SetConfigFile(path string) {
	cm.viper.SetConfigFile(path)
}

// LoadConfig 加载配置
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	// 设置默认值
	cm.setDefaults()

	// 读取配置文件
	if err := cm.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件不存在时使用默认配置
		cm.logger.Debug("no config file found, using defaults")
	}

	config, err := cm.decode()
	if err != nil {
		return nil, err
	}

	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()
	return config, nil
}

// decode 解析并验证当前 viper 中的配置
func (cm *ConfigManager) decode() (*Config, error) {
	config := &Config{}
	if err := cm.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// setDefaults 设置默认配置值
func (cm *ConfigManager) setDefaults() {
	v := cm.viper

	// 规则默认配置
	v.SetDefault("rules.multiplier_table", string(DefaultMultiplierTable))
	v.SetDefault("rules.max_stake", DefaultMaxStake)
	v.SetDefault("rules.starting_balance", DefaultStartingBalance)
	v.SetDefault("rules.placement_seven", string(DefaultPlacementSevenPolicy))

	// 结算默认配置
	v.SetDefault("settlement.store_timeout", DefaultStoreTimeout.String())
	v.SetDefault("settlement.lock_timeout", DefaultLockTimeout.String())
	v.SetDefault("settlement.lock_expiration", DefaultLockExpiration.String())
	v.SetDefault("settlement.retry_attempts", DefaultRetryAttempts)
	v.SetDefault("settlement.retry_interval", DefaultRetryInterval.String())

	// 存储默认配置
	v.SetDefault("store.backend", StoreBackendMemory)
	v.SetDefault("store.badger_path", DefaultBadgerPath)

	// Redis 默认配置
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", DefaultRedisPassword)
	v.SetDefault("redis.db", DefaultRedisDB)
	v.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	v.SetDefault("redis.min_idle_conns", DefaultRedisMinIdleConns)
	v.SetDefault("redis.max_retries", DefaultRedisMaxRetries)
	v.SetDefault("redis.dial_timeout", DefaultRedisDialTimeout.String())
	v.SetDefault("redis.read_timeout", DefaultRedisReadTimeout.String())
	v.SetDefault("redis.write_timeout", DefaultRedisWriteTimeout.String())
	v.SetDefault("redis.pool_timeout", DefaultRedisPoolTimeout.String())

	// 熔断器默认配置
	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.name", DefaultCircuitBreakerName)
	v.SetDefault("circuit_breaker.max_requests", DefaultCircuitBreakerMaxRequests)
	v.SetDefault("circuit_breaker.interval", DefaultCircuitBreakerInterval.String())
	v.SetDefault("circuit_breaker.timeout", DefaultCircuitBreakerTimeout.String())
	v.SetDefault("circuit_breaker.failure_ratio", DefaultCircuitBreakerFailureRatio)
	v.SetDefault("circuit_breaker.min_requests", DefaultCircuitBreakerMinRequests)
	v.SetDefault("circuit_breaker.on_state_change", DefaultCircuitBreakerOnStateChange)

	// 服务默认配置
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout.String())
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout.String())
	v.SetDefault("server.secure_cookies", false)

	// 登录默认配置
	v.SetDefault("auth.secret", DefaultAuthSecret)
	v.SetDefault("auth.session_ttl", DefaultSessionTTL.String())
	v.SetDefault("auth.otp_ttl", DefaultOTPTTL.String())
	v.SetDefault("auth.otp_rate_per_minute", DefaultOTPRatePerMinute)
	v.SetDefault("auth.otp_burst", DefaultOTPBurst)
	v.SetDefault("auth.verify_rate_per_minute", DefaultVerifyRatePerMinute)
	v.SetDefault("auth.verify_burst", DefaultVerifyBurst)
	v.SetDefault("auth.limiter_idle_ttl", DefaultLimiterIdleTTL.String())

	// 日志默认配置
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// WatchConfig 监听配置变化; 无效的新配置会被记录并忽略, 继续使用旧配置
func (cm *ConfigManager) WatchConfig(callback func(*Config)) error {
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		config, err := cm.decode()
		if err != nil {
			cm.logger.Error("ignoring config change from %s: %v", e.Name, err)
			return
		}

		cm.mu.Lock()
		cm.config = config
		cm.mu.Unlock()

		cm.logger.Info("config reloaded from %s", e.Name)
		if callback != nil {
			callback(config)
		}
	})
	cm.viper.WatchConfig()

	return nil
}

// GetConfig 获取当前配置
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ReloadConfig 重新加载配置
func (cm *ConfigManager) ReloadConfig() (*Config, error) { return cm.LoadConfig() }

// DefaultRedisConfig 返回默认的Redis配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         DefaultRedisAddr,
		Password:     DefaultRedisPassword,
		DB:           DefaultRedisDB,
		PoolSize:     DefaultRedisPoolSize,
		MinIdleConns: DefaultRedisMinIdleConns,
		MaxRetries:   DefaultRedisMaxRetries,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		PoolTimeout:  DefaultRedisPoolTimeout,
	}
}

// NewRedisClientFromConfig 从配置创建Redis客户端
func NewRedisClientFromConfig(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	})
}
