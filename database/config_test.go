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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigAppliesDefaults(t *testing.T) {
	t.Setenv("MQ_TEST_DB", "members")
	cfg, err := ParseConfig([]byte(`
connection:
  type: postgres
  driver: pgx
  port: 5432
  dbname: ${MQ_TEST_DB}
  slow_query_time: 500ms
migrate:
  enable_migrate_on_startup: true
  enable_foreign_key: true
`))
	require.NoError(t, err)

	c := cfg.ConnectionConfig
	assert.Equal(t, "members", c.DBName)
	assert.Equal(t, DriverPGX, c.Driver)
	assert.Equal(t, "127.0.0.1", c.Host)
	assert.Equal(t, "disable", c.SSLMode)
	assert.Equal(t, 100, c.MaxOpenConns)
	assert.Equal(t, time.Hour, c.ConnMaxLifetime)
	assert.Equal(t, 500*time.Millisecond, c.SlowQueryTime)
	assert.Equal(t, 5*time.Second, c.BusyTimeout)
	assert.True(t, cfg.DataMigrateConfig.EnableMigrateOnStartup)
	assert.Equal(t, "configs/sql", cfg.DataInitConfig.Filepath)
	assert.Equal(t, "prod", cfg.DataInitConfig.Environment)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing type":   "connection:\n  dbname: x\n",
		"unknown type":   "connection:\n  type: oracle\n  dbname: x\n",
		"unknown driver": "connection:\n  type: postgres\n  driver: odbc\n  dbname: x\n",
		"missing dbname": "connection:\n  type: sqlite\n",
		"bad yaml":       "connection: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connection:\n  type: sqlite\n  dbname: local\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.ConnectionConfig.IsSQLite())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "members")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_CONN_MAX_LIFETIME", "90")
	t.Setenv("DB_ENABLE_QUERY_LOG", "true")

	cfg := &Config{ConnectionConfig: ConnectionConfig{Type: "mysql", DBName: "other"}}
	_, err := NewDatabaseFactory().CreateFromConfig(cfg)
	require.NoError(t, err)

	c := cfg.ConnectionConfig
	assert.Equal(t, "postgres", c.Type)
	assert.Equal(t, DriverPGX, c.Driver)
	assert.Equal(t, "db.internal", c.Host)
	assert.Equal(t, 6543, c.Port)
	assert.Equal(t, "members", c.DBName)
	assert.Equal(t, 7, c.MaxOpenConns)
	assert.Equal(t, 90*time.Second, c.ConnMaxLifetime)
	assert.True(t, c.EnableQueryLog)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN(MemoryDBName, 0))
	assert.Equal(t, "member.db", sqliteDSN("member", 0))
	assert.Equal(t, "/tmp/x.db", sqliteDSN("/tmp/x.db", 0))
	assert.Equal(t, "member.db?_pragma=busy_timeout(5000)&_busy_timeout=5000", sqliteDSN("member", 5*time.Second))
	assert.Equal(t, "file::memory:?cache=shared&_pragma=busy_timeout(250)&_busy_timeout=250",
		sqliteDSN(MemoryDBName, 250*time.Millisecond))
}

func TestPostgresDSNEscapesCredentials(t *testing.T) {
	dm := newDatabaseManager(&Config{ConnectionConfig: ConnectionConfig{
		Type: "postgres", Host: "h", Port: 5432, Username: "u", Password: "p@ss/word",
		DBName: "db", SSLMode: "disable", ConnectTimeout: 3 * time.Second,
	}})
	dsn := dm.postgresDSN()
	assert.Contains(t, dsn, "postgres://u:p%40ss%2Fword@h:5432/db?")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "connect_timeout=3")
}
