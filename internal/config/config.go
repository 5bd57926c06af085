package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Cron     CronConfig     `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Timezone        string        `mapstructure:"timezone"`
}

type FetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	SizeCap     int64         `mapstructure:"size_cap"`
	UserAgent   string        `mapstructure:"user_agent"`
}

type CrawlConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// BackoffFactor lengthens a source's next interval per consecutive
	// failure. DeactivateThreshold marks a source inactive once exceeded.
	BackoffFactor       float64 `mapstructure:"backoff_factor"`
	DeactivateThreshold int     `mapstructure:"deactivate_threshold"`
	MaxURLsPerList      int     `mapstructure:"max_urls_per_list"`
}

type ApprovalConfig struct {
	// LowRiskFields is the allowlist of fields safe to auto-apply.
	LowRiskFields []string `mapstructure:"low_risk_fields"`
}

type CronConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.dial_timeout", "5s")
	v.SetDefault("fetch.size_cap", 5*1024*1024)
	v.SetDefault("fetch.user_agent", "stagecrawl/1.0 (+https://stagecrawl.example)")
	v.SetDefault("crawl.concurrency", 5)
	v.SetDefault("crawl.backoff_factor", 0.5)
	v.SetDefault("crawl.deactivate_threshold", 5)
	v.SetDefault("crawl.max_urls_per_list", 50)
	v.SetDefault("approval.low_risk_fields", []string{"price", "description"})
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.schedule", "@every 10m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
