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
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type defaultDatabaseManager struct {
	config     *ConnectionConfig
	migrate    DataMigrateConfig
	dataInit   DataInitConfig
	db         *bun.DB
	sqlDB      *sql.DB
	pool       *pgxpool.Pool
	logger     Logger
	mu         sync.RWMutex
	connected  bool
	lastError  error
	status     *HealthStatus
	retries    int
	stopHealth chan struct{}
}

// NewDatabaseManager returns a bun backed manager for a single connection
// config. A nil config falls back to DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	return newDatabaseManager(&Config{ConnectionConfig: *orDefault(config)})
}

func newDatabaseManager(cfg *Config) *defaultDatabaseManager {
	conn := cfg.ConnectionConfig
	return &defaultDatabaseManager{
		config:   &conn,
		migrate:  cfg.DataMigrateConfig,
		dataInit: cfg.DataInitConfig,
		status:   &HealthStatus{},
		logger:   GetLogger(),
	}
}

func orDefault(c *ConnectionConfig) *ConnectionConfig {
	if c == nil {
		return DefaultConnectionConfig()
	}
	return c
}

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.connected && dm.db != nil {
		return nil
	}

	if err := dm.open(ctx); err != nil {
		dm.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := dm.db.PingContext(pingCtx); err != nil {
		dm.lastError = err
		dm.closeLocked()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.connected = true
	dm.lastError = nil

	if dm.config.HealthCheckInterval > 0 {
		dm.stopHealth = make(chan struct{})
		go dm.healthLoop(dm.stopHealth)
	}

	dm.logger.Info("Database connected", "type", dm.config.Type, "host", dm.config.Host, "dbname", dm.config.DBName)
	return nil
}

func (dm *defaultDatabaseManager) open(ctx context.Context) error {
	if dm.config.ConnectTimeout <= 0 {
		dm.config.ConnectTimeout = 30 * time.Second
	}

	var err error
	switch normalizeType(dm.config.Type) {
	case TypeMySQL:
		err = dm.openMySQL()
	case TypePostgres:
		err = dm.openPostgres(ctx)
	case TypeSQLite:
		err = dm.openSQLite()
	default:
		return fmt.Errorf("unsupported database type: %s", dm.config.Type)
	}
	if err != nil {
		return err
	}

	dm.configurePool()
	dm.installHooks()
	return nil
}

func (dm *defaultDatabaseManager) openMySQL() error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
		dm.config.Username,
		dm.config.Password,
		dm.config.Host,
		dm.config.Port,
		dm.config.DBName,
		dm.config.Charset,
		dm.config.ConnectTimeout,
		dm.config.ReadTimeout,
		dm.config.WriteTimeout,
	)
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	dm.sqlDB = sqlDB
	dm.db = bun.NewDB(sqlDB, mysqldialect.New())
	return nil
}

func (dm *defaultDatabaseManager) postgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(dm.config.Username, dm.config.Password),
		Host:   fmt.Sprintf("%s:%d", dm.config.Host, dm.config.Port),
		Path:   "/" + dm.config.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", dm.config.SSLMode)
	q.Set("connect_timeout", fmt.Sprint(int(dm.config.ConnectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

func (dm *defaultDatabaseManager) openPostgres(ctx context.Context) error {
	if dm.config.SSLMode == "" {
		dm.config.SSLMode = "disable"
	}
	dsn := dm.postgresDSN()

	if dm.config.Driver != DriverPGX {
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		dm.sqlDB = sqlDB
		dm.db = bun.NewDB(sqlDB, pgdialect.New())
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return err
	}
	if dm.config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(dm.config.MaxOpenConns)
	}
	poolConfig.MaxConnLifetime = dm.config.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = dm.config.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return err
	}
	dm.pool = pool
	dm.sqlDB = stdlib.OpenDBFromPool(pool)
	dm.db = bun.NewDB(dm.sqlDB, pgdialect.New())
	return nil
}

// sqliteDSN maps DBName to a file path. ":memory:" opens a shared-cache
// in-memory database so every pooled connection sees the same data. The busy
// timeout is passed in both the modernc (_pragma) and mattn (_busy_timeout)
// spellings, since sqliteshim picks the driver at build time and each driver
// ignores the other's parameter.
func sqliteDSN(name string, busyTimeout time.Duration) string {
	var dsn string
	switch {
	case name == MemoryDBName:
		dsn = "file::memory:?cache=shared"
	case strings.HasSuffix(name, ".db"), strings.HasPrefix(name, "file:"):
		dsn = name
	default:
		dsn = name + ".db"
	}
	if busyTimeout <= 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	ms := busyTimeout.Milliseconds()
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_busy_timeout=%d", dsn, sep, ms, ms)
}

func (dm *defaultDatabaseManager) openSQLite() error {
	sqlDB, err := sql.Open(sqliteshim.ShimName, sqliteDSN(dm.config.DBName, dm.config.BusyTimeout))
	if err != nil {
		return err
	}
	dm.sqlDB = sqlDB
	dm.db = bun.NewDB(sqlDB, sqlitedialect.New())
	return nil
}

func (dm *defaultDatabaseManager) configurePool() {
	if dm.pool != nil {
		return
	}
	dm.sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	dm.sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	dm.sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	dm.sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)
}

func (dm *defaultDatabaseManager) installHooks() {
	if dm.config.EnableQueryLog {
		dm.db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if dm.config.EnableColorQuery {
		dm.db.AddQueryHook(NewQueryHook(WithEnabled(true), WithWriter(os.Stdout)))
	}
	if dm.config.SlowQueryTime > 0 {
		dm.db.AddQueryHook(newSlowQueryHook(dm.config.SlowQueryTime, dm.logger))
	}
}

func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.closeLocked()
}

func (dm *defaultDatabaseManager) closeLocked() error {
	if dm.stopHealth != nil {
		close(dm.stopHealth)
		dm.stopHealth = nil
	}
	if dm.db == nil {
		return nil
	}

	err := dm.db.Close()
	if dm.pool != nil {
		dm.pool.Close()
		dm.pool = nil
	}
	dm.db = nil
	dm.sqlDB = nil
	dm.connected = false

	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
	} else {
		dm.logger.Info("Database connection closed")
	}
	return err
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	dm.logger.Info("Attempting to reconnect to the database")
	if err := dm.Disconnect(); err != nil {
		dm.logger.Warn("Error disconnecting existing connection", "error", err)
	}
	return dm.Connect(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()

	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start, Connected: dm.connected}
	if dm.db == nil {
		status.LastError = "Database not initialized"
		dm.status = status
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := dm.db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.Connected = false
		status.LastError = err.Error()
		dm.lastError = err
	} else {
		status.Healthy = true
		status.Connected = true
		dm.lastError = nil
	}

	stats := dm.sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	dm.status = status
	return status
}

// healthLoop exits when stop is closed. A reconnect replaces the loop, so the
// old one sees its own channel closed on the next tick.
func (dm *defaultDatabaseManager) healthLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(dm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			status := dm.HealthCheck(ctx)
			cancel()
			if !status.Healthy && dm.config.EnableReconnect {
				dm.handleReconnect()
			}
		case <-stop:
			return
		}
	}
}

func (dm *defaultDatabaseManager) handleReconnect() {
	if dm.retries >= dm.config.MaxReconnectTries {
		dm.logger.Error("Max reconnect attempts reached, stopping", "tries", dm.retries)
		return
	}
	dm.retries++
	dm.logger.Info("Starting database reconnect", "try", dm.retries)

	time.Sleep(dm.config.ReconnectInterval)

	ctx, cancel := context.WithTimeout(context.Background(), dm.config.ConnectTimeout)
	defer cancel()
	if err := dm.Reconnect(ctx); err != nil {
		dm.logger.Error("Reconnect failed", "error", err, "try", dm.retries)
		return
	}
	dm.retries = 0
	dm.logger.Info("Reconnect succeeded")
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	dm.mu.RLock()
	sqlDB := dm.sqlDB
	dm.mu.RUnlock()

	if sqlDB == nil {
		return &DBStats{}
	}
	return newDBStats(sqlDB.Stats())
}

func (dm *defaultDatabaseManager) migrationManager() (*MigrationManager, error) {
	db := dm.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	mm := NewMigrationManager(db, dm.logger)
	mm.SetOptions(dm.migrate, dm.dataInit)
	return mm, nil
}

func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context) error {
	mm, err := dm.migrationManager()
	if err != nil {
		return err
	}
	return mm.RunMigrations(ctx)
}

func (dm *defaultDatabaseManager) InitData(ctx context.Context) error {
	mm, err := dm.migrationManager()
	if err != nil {
		return err
	}
	return mm.InitData(ctx)
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
