package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudverse/metering-center/config"
	_ "github.com/go-sql-driver/mysql"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

var log = logging.Logger("dao")

var (
	// DB reference to database
	DB *sqlx.DB
	// RedisCache redis caching instance
	RedisCache *redis.Client
)

const (
	maxOpenConnections = 60
	connMaxLifetime    = 120
	maxIdleConnections = 30
	connMaxIdleTime    = 20
)

var ErrNoRow = fmt.Errorf("no matching row found")

func Init(cfg *config.Config) error {
	if err := initMysql(cfg); err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	_, err := client.Ping(context.Background()).Result()
	if err != nil {
		return err
	}

	RedisCache = client
	return nil
}

func initMysql(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database url not setup")
	}

	db, err := sqlx.Connect("mysql", cfg.DatabaseURL)
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(maxOpenConnections)
	db.SetConnMaxLifetime(connMaxLifetime * time.Second)
	db.SetMaxIdleConns(maxIdleConnections)
	db.SetConnMaxIdleTime(connMaxIdleTime * time.Second)

	DB = db
	return nil
}
