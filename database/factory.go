/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// BaseDatabaseFactory builds a manager from configuration and drives its
// startup sequence: connect, migrate, seed.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	config  *Config
	logger  Logger
}

func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{logger: GetLogger()}
}

// CreateFromConfig applies environment overrides and defaults, validates the
// result and creates the manager. cfg is updated in place.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *Config) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	overrideFromEnv(&cfg.ConnectionConfig)
	if err := PrepareConfig(cfg); err != nil {
		return nil, err
	}

	manager := newDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	f.manager = manager
	f.config = cfg
	return manager, nil
}

func envInt(name string, set func(int)) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			set(n)
		}
	}
}

func envSeconds(name string, set func(time.Duration)) {
	envInt(name, func(n int) { set(time.Duration(n) * time.Second) })
}

func envString(name string, set func(string)) {
	if v := os.Getenv(name); v != "" {
		set(v)
	}
}

func envBool(name string, set func(bool)) {
	if v := os.Getenv(name); v != "" {
		set(v == "true" || v == "1")
	}
}

// overrideFromEnv lets DB_* variables replace connection settings.
func overrideFromEnv(cfg *ConnectionConfig) {
	envString("DB_TYPE", func(v string) { cfg.Type = v })
	envString("DB_DRIVER", func(v string) { cfg.Driver = v })
	envString("DB_HOST", func(v string) { cfg.Host = v })
	envInt("DB_PORT", func(v int) { cfg.Port = v })
	envString("DB_USERNAME", func(v string) { cfg.Username = v })
	envString("DB_PASSWORD", func(v string) { cfg.Password = v })
	envString("DB_NAME", func(v string) { cfg.DBName = v })
	envString("DB_SSLMODE", func(v string) { cfg.SSLMode = v })

	envInt("DB_MAX_IDLE_CONNS", func(v int) { cfg.MaxIdleConns = v })
	envInt("DB_MAX_OPEN_CONNS", func(v int) { cfg.MaxOpenConns = v })
	envSeconds("DB_CONN_MAX_LIFETIME", func(v time.Duration) { cfg.ConnMaxLifetime = v })

	envBool("DB_ENABLE_RECONNECT", func(v bool) { cfg.EnableReconnect = v })
	envSeconds("DB_RECONNECT_INTERVAL", func(v time.Duration) { cfg.ReconnectInterval = v })
	envSeconds("DB_BUSY_TIMEOUT", func(v time.Duration) { cfg.BusyTimeout = v })

	envBool("DB_ENABLE_QUERY_LOG", func(v bool) { cfg.EnableQueryLog = v })
	envBool("DB_ENABLE_COLOR_QUERY", func(v bool) { cfg.EnableColorQuery = v })
}

// InitializeDatabase connects, optionally migrates, then seeds when
// AutoInitOnStartup is set.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, runMigrations bool) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if runMigrations {
		if err := f.manager.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	if f.config != nil && f.config.DataInitConfig.AutoInitOnStartup {
		if err := f.manager.InitData(ctx); err != nil {
			return fmt.Errorf("failed to initialize data: %w", err)
		}
	}
	f.logger.Info("Database initialization completed")
	return nil
}

func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the bun database, or nil before CreateFromConfig.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// SetLogger sets the logger on the factory and the underlying manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
