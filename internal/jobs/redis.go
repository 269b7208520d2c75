package jobs

import (
	"github.com/hibiken/asynq"

	"github.com/Proton-105/savos-bot/pkg/config"
)

// RedisOpt converts the application redis settings into asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
}
