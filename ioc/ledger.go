package ioc

import (
	"context"
	"fmt"
	"time"

	"github.com/KNICEX/crypto-alert/internal/config"
	"github.com/KNICEX/crypto-alert/internal/repo"
	"github.com/KNICEX/crypto-alert/internal/service/ledger"
	"github.com/go-redis/redis/v8"
)

func InitLedger(cfg config.Ledger) (ledger.Ledger, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := InitDB(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return ledger.FromRepo(repo.NewAlertRepo(db)), nil
	case "buntdb":
		return ledger.FromBunt(cfg.Path)
	case "redis":
		cli, err := InitRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return ledger.FromRedis(cli, cfg.Redis.Key), nil
	default:
		return ledger.FromFile(cfg.Path), nil
	}
}

func InitRedis(cfg config.Redis) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return cli, nil
}
