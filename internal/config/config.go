package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string         `mapstructure:"driver"`
	MaxIdleConns    int            `mapstructure:"max_idle_conns"`
	MaxOpenConns    int            `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration  `mapstructure:"conn_max_lifetime"`
	Postgres        PostgresConfig `mapstructure:"postgres"`
	MySQL           MySQLConfig    `mapstructure:"mysql"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	DBName    string `mapstructure:"dbname"`
	Charset   string `mapstructure:"charset"`
	ParseTime bool   `mapstructure:"parse_time"`
	Loc       string `mapstructure:"loc"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig JWT 验签配置
// 令牌由统一身份平台签发，本服务只做 RS256 验签
type JWTConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Issuer        string `mapstructure:"issuer"`
}

// CacheConfig 权限缓存配置
type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	FreshTTL   time.Duration `mapstructure:"fresh_ttl"`
	StaleTTL   time.Duration `mapstructure:"stale_ttl"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	VolumeThreshold   int           `mapstructure:"volume_threshold"`
	ErrorRate         float64       `mapstructure:"error_rate"`
	OpenTimeout       time.Duration `mapstructure:"open_timeout"`
	HalfOpenSuccesses int           `mapstructure:"half_open_successes"`
	MaxHalfOpenProbes int           `mapstructure:"max_half_open_probes"`
}

// NotifyConfig 授权变更通知配置
type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	AdminTo  string `mapstructure:"admin_to"`
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	MaterializeSpec string `mapstructure:"materialize_spec"`
	ExpireSweepSpec string `mapstructure:"expire_sweep_spec"`
}

var global *Config

// Load 加载配置
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 支持环境变量覆盖
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	global = &cfg
	return &cfg, nil
}

// LoadFromFile 从指定路径加载配置
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaultsOn(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	global = &cfg
	return &cfg, nil
}

// Get 获取全局配置，未加载时返回 nil
func Get() *Config {
	return global
}

// setDefaults 设置默认值
func setDefaults() {
	setDefaultsOn(viper.GetViper())
}

func setDefaultsOn(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "perm_engine")
	v.SetDefault("database.postgres.sslmode", "disable")

	// Redis 默认配置
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// JWT 默认配置
	v.SetDefault("jwt.issuer", "unified-auth-center")

	// 权限缓存默认配置
	v.SetDefault("cache.max_entries", 4096)
	v.SetDefault("cache.fresh_ttl", "1h")
	v.SetDefault("cache.stale_ttl", "24h")

	// 熔断器默认配置
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.volume_threshold", 10)
	v.SetDefault("breaker.error_rate", 0.5)
	v.SetDefault("breaker.open_timeout", "30s")
	v.SetDefault("breaker.half_open_successes", 2)
	v.SetDefault("breaker.max_half_open_probes", 1)

	// 通知默认配置
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.smtp_port", 587)

	// 定时任务默认配置
	v.SetDefault("scheduler.materialize_spec", "@every 1m")
	v.SetDefault("scheduler.expire_sweep_spec", "@every 5m")
}
