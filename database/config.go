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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Supported values of ConnectionConfig.Type.
const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Supported values of ConnectionConfig.Driver for PostgreSQL.
const (
	DriverPQ  = "pq"
	DriverPGX = "pgx"
)

// MemoryDBName selects a shared in-memory SQLite database.
const MemoryDBName = ":memory:"

// ConnectionConfig describes how to connect to a database and tune its pool.
type ConnectionConfig struct {
	Type     string `json:"type" yaml:"type" validate:"required,oneof=mysql postgres postgresql sqlite sqlite3"`
	Driver   string `json:"driver" yaml:"driver" default:"pq" validate:"omitempty,oneof=pq pgx"` // postgres only
	Host     string `json:"host" yaml:"host" default:"127.0.0.1"`
	Port     int    `json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname" validate:"required"`
	SSLMode  string `json:"sslmode" yaml:"sslmode" default:"disable" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	Charset  string `json:"charset" yaml:"charset" default:"utf8mb4"` // mysql only

	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" default:"10"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" default:"100"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" default:"1h"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" default:"30m"`
	ConnectTimeout  time.Duration `json:"connect_timeout" yaml:"connect_timeout" default:"10s"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" default:"30s"`

	EnableReconnect     bool          `json:"enable_reconnect" yaml:"enable_reconnect"`
	ReconnectInterval   time.Duration `json:"reconnect_interval" yaml:"reconnect_interval" default:"5s"`
	MaxReconnectTries   int           `json:"max_reconnect_tries" yaml:"max_reconnect_tries" default:"3"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`

	EnableQueryLog   bool          `json:"enable_query_log" yaml:"enable_query_log"`     // bundebug
	EnableColorQuery bool          `json:"enable_color_query" yaml:"enable_color_query"` // colored console hook
	SlowQueryTime    time.Duration `json:"slow_query_time" yaml:"slow_query_time" default:"2s"`

	// BusyTimeout is how long a SQLite connection waits for the database
	// write lock before failing with SQLITE_BUSY.
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout" default:"5s"`
}

// IsSQLite reports whether the connection targets SQLite.
func (c *ConnectionConfig) IsSQLite() bool {
	return normalizeType(c.Type) == TypeSQLite
}

// DataMigrateConfig controls schema migration behavior on startup.
type DataMigrateConfig struct {
	EnableMigrateOnStartup bool   `json:"enable_migrate_on_startup" yaml:"enable_migrate_on_startup"`
	EnableForeignKey       bool   `json:"enable_foreign_key" yaml:"enable_foreign_key"`
	ForeignKeyFile         string `json:"foreign_key_file" yaml:"foreign_key_file"`
}

// DataInitConfig controls SQL seeding and the environment directory it reads.
type DataInitConfig struct {
	AutoInitOnStartup   bool   `json:"auto_init_on_startup" yaml:"auto_init_on_startup"`
	AutoInitOnMigration bool   `json:"auto_init_on_migration" yaml:"auto_init_on_migration"`
	Filepath            string `json:"filepath" yaml:"filepath" default:"configs/sql"`
	Environment         string `json:"environment" yaml:"environment" default:"prod"`
	RenderTemplate      bool   `json:"render_template" yaml:"render_template"`
}

// Config aggregates connection, migration, and data initialization settings.
type Config struct {
	ConnectionConfig  ConnectionConfig  `json:"connection_config" yaml:"connection"`
	DataMigrateConfig DataMigrateConfig `json:"data_migrate_config" yaml:"migrate"`
	DataInitConfig    DataInitConfig    `json:"data_init_config" yaml:"data_init"`
}

// DefaultConnectionConfig returns a connection config with every default applied.
func DefaultConnectionConfig() *ConnectionConfig {
	cfg := &ConnectionConfig{}
	_ = defaults.Set(cfg)
	cfg.EnableReconnect = true
	return cfg
}

// LoadConfig reads a YAML file, expands ${VAR} references from the
// environment, applies defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := PrepareConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PrepareConfig applies defaults to zero fields and validates cfg.
func PrepareConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("database configuration cannot be empty")
	}
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("failed to set config defaults: %w", err)
	}
	return validateConfig(cfg)
}

func validateConfig(cfg *Config) error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors) //nolint: errorlint
	if !ok {
		return err
	}
	failed := make([]string, 0, len(errs))
	for _, fe := range errs {
		tag := fe.Tag()
		if fe.Param() != "" {
			tag += "=" + fe.Param()
		}
		failed = append(failed, fe.Namespace()+": "+tag)
	}
	return fmt.Errorf("invalid database config -> %s", strings.Join(failed, ", "))
}

func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "postgres", "postgresql":
		return TypePostgres
	case "sqlite", "sqlite3":
		return TypeSQLite
	case "mysql":
		return TypeMySQL
	default:
		return t
	}
}
