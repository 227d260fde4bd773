package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	RPGMaker RPGMakerConfig `mapstructure:"rpgmaker"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
}

type RPGMakerConfig struct {
	DataPath string `mapstructure:"data_path"` // directory holding the JSON database export
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | memory | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"`
	LocalPubSubBuf int    `mapstructure:"local_pubsub_buf"`
}

type BattleConfig struct {
	Engine            string `mapstructure:"engine"` // 2k | 2k3
	MaxCallDepth      int    `mapstructure:"max_call_depth"`
	MaxTurns          int    `mapstructure:"max_turns"`
	MaxFramesPerEvent int    `mapstructure:"max_frames_per_event"`
	Condition         string `mapstructure:"condition"` // default formation: normal | initiative | back | surround | pincers
	CanEscape         bool   `mapstructure:"can_escape"`
	// StateFlushInterval is how often dirty switches/variables are written to the database.
	StateFlushInterval time.Duration `mapstructure:"state_flush_interval"`
	// Battle logs older than LogRetention are deleted every LogPruneInterval; 0 keeps them forever.
	LogRetention     time.Duration `mapstructure:"log_retention"`
	LogPruneInterval time.Duration `mapstructure:"log_prune_interval"`
	// InputTimeout bounds how long a WebSocket battle waits for a command before auto-attacking.
	InputTimeout time.Duration `mapstructure:"input_timeout"`
}

// RPG2k3 reports whether 2003-only command parameters are honoured.
func (b BattleConfig) RPG2k3() bool { return b.Engine == EngineRPG2k3 }

const (
	EngineRPG2k  = "2k"
	EngineRPG2k3 = "2k3"
)

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty → stderr only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Debug      bool   `mapstructure:"-"`
}

type SecurityConfig struct {
	AdminJWTSecret string        `mapstructure:"admin_jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	AdminIPs       []string      `mapstructure:"admin_ips"`       // IPs or CIDRs; empty allows all
	AllowedOrigins []string      `mapstructure:"allowed_origins"` // WebSocket origins; empty allows all
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return unmarshal(v)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := unmarshal(v)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("rpgmaker.data_path", "./data")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/battle.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("battle.engine", EngineRPG2k3)
	v.SetDefault("battle.max_call_depth", 100)
	v.SetDefault("battle.max_turns", 200)
	v.SetDefault("battle.max_frames_per_event", 3600)
	v.SetDefault("battle.condition", "normal")
	v.SetDefault("battle.can_escape", true)
	v.SetDefault("battle.state_flush_interval", "5s")
	v.SetDefault("battle.log_retention", "720h")
	v.SetDefault("battle.log_prune_interval", "1h")
	v.SetDefault("battle.input_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 20)
	v.SetDefault("security.rate_limit_burst", 40)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	switch cfg.Battle.Engine {
	case EngineRPG2k, EngineRPG2k3:
	default:
		return nil, fmt.Errorf("config: unknown battle.engine %q", cfg.Battle.Engine)
	}
	cfg.Log.Debug = cfg.Server.Debug
	return cfg, nil
}
