package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultPath = "./configs/config.local.yaml"

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin HTTP
	// CORSOrigins 为空则允许全部来源
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int `mapstructure:"access_token_ttl_min"`
}

type Redis struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	Prefix        string `mapstructure:"prefix"`
	ProfileTTLSec int    `mapstructure:"profile_ttl_sec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type Face struct {
	Threshold float64
	// Dimension 特征向量长度，0 表示不限制
	Dimension int
}

type Attendance struct {
	// Timezone 计算"今天"所用时区，如 Asia/Shanghai；空或 Local 用服务器时区
	Timezone string
}

type Upload struct {
	Dir      string
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type Limits struct {
	RPS         float64
	Burst       int
	PerIPRPS    float64 `mapstructure:"per_ip_rps"`
	PerIPBurst  int     `mapstructure:"per_ip_burst"`
	Concurrency int64
	BodyBytes   int64 `mapstructure:"body_bytes"`
	TimeoutSec  int   `mapstructure:"timeout_sec"`
}

type Config struct {
	App        App
	Log        Log
	JWT        JWT
	DB         DB
	Redis      Redis `mapstructure:"redis"`
	Face       Face
	Attendance Attendance
	Upload     Upload
	Limits     Limits
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenTTLMin) * time.Minute
}

func (c *Config) ProfileTTL() time.Duration {
	return time.Duration(c.Redis.ProfileTTLSec) * time.Second
}

// Location "今天"的边界按此时区的零点
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Attendance.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "face-attendance")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 5000)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 5001)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file.filename", "logs/app.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("jwt.issuer", "face-attendance")
	v.SetDefault("jwt.access_token_ttl_min", 60)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "attendance.db")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_level", "warn")
	v.SetDefault("redis.prefix", "face-attendance")
	v.SetDefault("redis.profile_ttl_sec", 300)
	v.SetDefault("face.threshold", 0.6)
	v.SetDefault("face.dimension", 0)
	v.SetDefault("attendance.timezone", "Local")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_bytes", 5<<20)
	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.per_ip_rps", 20)
	v.SetDefault("limits.per_ip_burst", 40)
	v.SetDefault("limits.concurrency", 300)
	v.SetDefault("limits.body_bytes", 16<<20)
	v.SetDefault("limits.timeout_sec", 10)
}

// Read 读取配置文件；默认路径下文件不存在时只用默认值 + 环境变量
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.Face.Threshold <= 0 {
		return errors.New("config: face.threshold must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: attendance.timezone: %w", err)
	}
	return nil
}

// Load 同 Read，失败直接退出
func Load(path string) *Config {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	c, err := Read(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return c
}
