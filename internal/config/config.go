package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Pagespeed PagespeedConfig
	Notify    NotifyConfig
	Logging   LoggingConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
}

type RedisConfig struct {
	URL string
}

type SchedulerConfig struct {
	WorkerCount       int
	QueueSize         int
	CheckTimeout      time.Duration
	ReconcileInterval time.Duration
	MaxRetries        int
	DrainTimeout      time.Duration
}

type PagespeedConfig struct {
	APIURL         string
	APIKey         string
	Timeout        time.Duration
	RequestsPerMin int
}

type NotifyConfig struct {
	Timeout    time.Duration
	MaxRetries int
}

type LoggingConfig struct {
	Dir   string
	Level string
}

type AuthConfig struct {
	JWTSecret string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("PULSEWATCH")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.maxidleconns", 5)
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("scheduler.workercount", 10)
	viper.SetDefault("scheduler.queuesize", 1000)
	viper.SetDefault("scheduler.checktimeout", "30s")
	viper.SetDefault("scheduler.reconcileinterval", "10m")
	viper.SetDefault("scheduler.maxretries", 3)
	viper.SetDefault("scheduler.draintimeout", "30s")
	viper.SetDefault("pagespeed.apiurl", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	viper.SetDefault("pagespeed.timeout", "60s")
	viper.SetDefault("pagespeed.requestspermin", 20)
	viper.SetDefault("notify.timeout", "10s")
	viper.SetDefault("notify.maxretries", 3)
	viper.SetDefault("logging.dir", "logs")
	viper.SetDefault("logging.level", "info")

	var cfg Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if key := os.Getenv("PAGESPEED_API_KEY"); key != "" {
		cfg.Pagespeed.APIKey = key
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	return &cfg, nil
}
