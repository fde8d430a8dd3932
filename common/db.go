package common

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"

	"report-case-service/config"
)

// DBConnect opens the MySQL pool and waits for the server to answer a ping,
// backing off exponentially up to DBPingMaxWaitSeconds.
func DBConnect(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		log.Errorf("Failed to connect to the database: %v", err)
		return nil, err
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	deadline := time.Now().Add(time.Duration(cfg.DBPingMaxWaitSeconds) * time.Second)
	waitInterval := time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		pingErr := db.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		if time.Now().After(deadline) {
			db.Close()
			return nil, fmt.Errorf("database ping timeout after %ds: %w", cfg.DBPingMaxWaitSeconds, pingErr)
		}
		log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, pingErr)
		time.Sleep(waitInterval)
		waitInterval *= 2
		if waitInterval > 30*time.Second {
			waitInterval = 30 * time.Second
		}
	}

	log.WithFields(log.Fields{
		"host":     cfg.DBHost,
		"db":       cfg.DBName,
		"max_open": cfg.DBMaxOpenConns,
		"max_idle": cfg.DBMaxIdleConns,
	}).Info("Established db connection pool")
	return db, nil
}
