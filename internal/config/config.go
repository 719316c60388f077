package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`    // 服务器配置
	Database  DatabaseConfig            `mapstructure:"database"`  // PostgreSQL配置
	Redis     RedisConfig               `mapstructure:"redis"`     // Redis配置（可选，多实例部署时做分布式锁）
	Sync      SyncConfig                `mapstructure:"sync"`      // 同步调度配置
	Platforms map[string]PlatformConfig `mapstructure:"platforms"` // 多平台独立配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	LogSQL          bool          `mapstructure:"log_sql"`           // 是否打印SQL
}

// RedisConfig Redis配置，Addr 为空则只使用进程内锁
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"` // 分布式锁过期时间
}

// SyncConfig 同步调度配置
type SyncConfig struct {
	EnabledPlatforms          []string        `mapstructure:"enabled_platforms"`            // 启用的平台列表，为空则全部启用
	DefaultTenant             string          `mapstructure:"default_tenant"`               // 配置文件凭证归属的租户
	MaxAttempts               int             `mapstructure:"max_attempts"`                 // 单个平台最多尝试次数（含首次）
	BackoffLadder             []time.Duration `mapstructure:"backoff_ladder"`               // 默认退避阶梯
	MaxBackoff                time.Duration   `mapstructure:"max_backoff"`                  // 单次退避上限（含 rate_limit_reset）
	BatchTimeout              time.Duration   `mapstructure:"batch_timeout"`                // 批次超时
	MaxConcurrencyPerPlatform int             `mapstructure:"max_concurrency_per_platform"` // 单平台最大并发
	DriftTTL                  time.Duration   `mapstructure:"drift_ttl"`                    // synced 超过该时长标记为 stale
	DriftInterval             time.Duration   `mapstructure:"drift_interval"`               // 漂移扫描间隔，0 表示不启动
}

// PlatformConfig 单个平台的独立配置
type PlatformConfig struct {
	Adapter            string   `mapstructure:"adapter"`               // 使用的适配器，默认与平台名相同
	BaseURL            string   `mapstructure:"base_url"`              // API基础地址
	Timeout            int      `mapstructure:"timeout"`               // 请求超时（秒）
	Proxy              string   `mapstructure:"proxy"`                 // 代理地址
	AuthToken          string   `mapstructure:"auth_token"`            // 通用认证Token
	AuthKey            string   `mapstructure:"auth_key"`              // API Key
	AuthSecret         string   `mapstructure:"auth_secret"`           // API Secret / 签名私钥(PEM)
	Simulate           bool     `mapstructure:"simulate"`              // 无凭证时返回带 simulated 标记的模拟结果
	Priority           string   `mapstructure:"priority"`              // critical/high/medium/low
	Industries         []string `mapstructure:"industries"`            // 平台覆盖的行业
	Locations          []string `mapstructure:"locations"`             // 平台覆盖的地区
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"` // 覆盖适配器默认的每分钟限额
	RateLimitPerDay    int      `mapstructure:"rate_limit_per_day"`    // 覆盖适配器默认的每日限额
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("./config")
}

// LoadConfigFrom 从指定目录加载 config.yaml
func LoadConfigFrom(dir string) (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if cfg.Platforms == nil {
		cfg.Platforms = make(map[string]PlatformConfig)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.lock_ttl", "10m")
	v.SetDefault("sync.default_tenant", "default")
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.backoff_ladder", []string{"1s", "2s", "4s"})
	v.SetDefault("sync.max_backoff", "1m")
	v.SetDefault("sync.batch_timeout", "5m")
	v.SetDefault("sync.max_concurrency_per_platform", 8)
	v.SetDefault("sync.drift_ttl", "168h")
	v.SetDefault("sync.drift_interval", "0s")
}

// Validate 基本取值校验
func (c *Config) Validate() error {
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync.max_attempts 必须 >= 1，当前: %d", c.Sync.MaxAttempts)
	}
	if len(c.Sync.BackoffLadder) == 0 {
		return fmt.Errorf("sync.backoff_ladder 不能为空")
	}
	if c.Sync.MaxConcurrencyPerPlatform < 1 {
		return fmt.Errorf("sync.max_concurrency_per_platform 必须 >= 1")
	}
	// 锁先于批次过期会让另一个实例重复同步同一平台
	if c.Redis.LockTTL > 0 && c.Sync.BatchTimeout > 0 && c.Redis.LockTTL <= c.Sync.BatchTimeout {
		return fmt.Errorf("redis.lock_ttl(%s) 必须大于 sync.batch_timeout(%s)", c.Redis.LockTTL, c.Sync.BatchTimeout)
	}
	for name, p := range c.Platforms {
		if p.Timeout < 0 {
			return fmt.Errorf("平台%s的 timeout 不能为负数", name)
		}
	}
	return nil
}

// IsEnabled 平台是否启用；未配置 enabled_platforms 时全部启用
func (c *Config) IsEnabled(platform string) bool {
	if len(c.Sync.EnabledPlatforms) == 0 {
		return true
	}
	for _, p := range c.Sync.EnabledPlatforms {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}

// EnvPrefix 平台名转环境变量前缀，如 custom_directory -> CUSTOM_DIRECTORY
func EnvPrefix(platform string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(platform))
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	for name, p := range cfg.Platforms {
		ApplyPlatformEnv(name, &p)
		cfg.Platforms[name] = p
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}

// ApplyPlatformEnv 读取 <PLATFORM>_AUTH_TOKEN / _AUTH_KEY / _AUTH_SECRET / _PROXY
func ApplyPlatformEnv(name string, p *PlatformConfig) {
	prefix := EnvPrefix(name)
	if v := os.Getenv(prefix + "_AUTH_TOKEN"); v != "" {
		p.AuthToken = v
	}
	if v := os.Getenv(prefix + "_AUTH_KEY"); v != "" {
		p.AuthKey = v
	}
	if v := os.Getenv(prefix + "_AUTH_SECRET"); v != "" {
		p.AuthSecret = v
	}
	if v := os.Getenv(prefix + "_PROXY"); v != "" {
		p.Proxy = v
	}
}
