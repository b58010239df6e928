package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		DBPath      string `env:"DB_PATH,default=modkit.db"`
		LogLevel    int    `env:"LOG_LEVEL,default=4"`
		DotPath     string `env:"DOT_PATH,default=~/.modkit"`
		MetricsAddr string `env:"METRICS_ADDR,default=:2112"`
		Moderation  Moderation
		Scheduler   Scheduler
	}

	Moderation struct {
		// GracePeriod is the delay between a forcible deletion and the
		// physical removal of the censored post.
		GracePeriod time.Duration `env:"MODERATION_GRACE_PERIOD,default=168h"`
	}

	Scheduler struct {
		Enabled      bool          `env:"SCHEDULER_ENABLED,default=true"`
		PollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL,default=1m"`
		ClaimTTL     time.Duration `env:"SCHEDULER_CLAIM_TTL,default=5m"`
		MaxFailures  int           `env:"SCHEDULER_MAX_FAILURES,default=5"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("MODKIT_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
