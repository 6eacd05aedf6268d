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
	"path/filepath"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"gopkg.in/yaml.v3"
)

var validFKActions = []string{"CASCADE", "RESTRICT", "SET NULL", "NO ACTION"}

// ForeignKeyConstraint describes a foreign key relationship between tables.
type ForeignKeyConstraint struct {
	Table           string
	Column          string
	ReferenceTable  string
	ReferenceColumn string
	OnDelete        string // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string
	ConstraintName  string
}

// GenerateConstraintName returns the explicit name or fk_<table>_<column>.
func (fk *ForeignKeyConstraint) GenerateConstraintName() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// GenerateSQL returns the ALTER TABLE statement adding the constraint.
func (fk *ForeignKeyConstraint) GenerateSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
		fk.Table, fk.GenerateConstraintName(), fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + strings.ToUpper(fk.OnDelete))
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + strings.ToUpper(fk.OnUpdate))
	}
	return b.String()
}

// defaultForeignKeys is the code-defined fallback when no YAML file is given.
func defaultForeignKeys() []ForeignKeyConstraint {
	return []ForeignKeyConstraint{
		{
			Table:           "members",
			Column:          "team_id",
			ReferenceTable:  "teams",
			ReferenceColumn: "id",
			OnDelete:        "SET NULL",
		},
	}
}

// ForeignKeyManager adds and validates foreign key constraints.
type ForeignKeyManager struct {
	constraints []ForeignKeyConstraint
	logger      Logger
}

// NewForeignKeyManager creates a manager with the code-defined constraints.
func NewForeignKeyManager(logger Logger) *ForeignKeyManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &ForeignKeyManager{constraints: defaultForeignKeys(), logger: logger}
}

// AddAllForeignKeys adds every constraint, logging and skipping failures.
// SQLite cannot add constraints to an existing table, so nothing is done there.
func (fkm *ForeignKeyManager) AddAllForeignKeys(ctx context.Context, db bun.IDB) error {
	if db.Dialect().Name() == dialect.SQLite {
		fkm.logger.Debug("Skipping foreign keys, not supported by ALTER TABLE on sqlite")
		return nil
	}
	for _, c := range fkm.constraints {
		if _, err := db.ExecContext(ctx, c.GenerateSQL()); err != nil {
			fkm.logger.Warn("Failed to add foreign key constraint", "constraint", c.GenerateConstraintName(), "error", err.Error())
			continue
		}
		fkm.logger.Debug("Added foreign key constraint", "constraint", c.GenerateConstraintName())
	}
	return nil
}

// RemoveForeignKey drops a named foreign key from a table.
func (fkm *ForeignKeyManager) RemoveForeignKey(ctx context.Context, db bun.IDB, tableName, constraintName string) error {
	stmt := "ALTER TABLE %s DROP CONSTRAINT %s"
	if db.Dialect().Name() == dialect.MySQL {
		stmt = "ALTER TABLE %s DROP FOREIGN KEY %s"
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(stmt, tableName, constraintName))
	return err
}

// GetConstraintsByTable returns the constraints declared on a table.
func (fkm *ForeignKeyManager) GetConstraintsByTable(tableName string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, c := range fkm.constraints {
		if strings.EqualFold(c.Table, tableName) {
			result = append(result, c)
		}
	}
	return result
}

func (fkm *ForeignKeyManager) ListAllConstraints() []ForeignKeyConstraint {
	return fkm.constraints
}

// ValidateConstraints reports missing names and unknown referential actions.
func (fkm *ForeignKeyManager) ValidateConstraints() []error {
	var errs []error
	for _, c := range fkm.constraints {
		switch {
		case c.Table == "":
			errs = append(errs, fmt.Errorf("table name cannot be empty"))
		case c.Column == "":
			errs = append(errs, fmt.Errorf("column name cannot be empty: %s", c.Table))
		case c.ReferenceTable == "":
			errs = append(errs, fmt.Errorf("reference table name cannot be empty: %s.%s", c.Table, c.Column))
		case c.ReferenceColumn == "":
			errs = append(errs, fmt.Errorf("reference column name cannot be empty: %s.%s -> %s", c.Table, c.Column, c.ReferenceTable))
		}
		for name, action := range map[string]string{"delete": c.OnDelete, "update": c.OnUpdate} {
			if action != "" && !validFKAction(action) {
				errs = append(errs, fmt.Errorf("invalid %s policy: %s, constraint: %s", name, action, c.GenerateConstraintName()))
			}
		}
	}
	return errs
}

func validFKAction(action string) bool {
	for _, a := range validFKActions {
		if strings.EqualFold(action, a) {
			return true
		}
	}
	return false
}

// ForeignKeyConfig is the YAML document listing foreign key constraints.
type ForeignKeyConfig struct {
	ForeignKeys []ForeignKeyConstraintConfig `yaml:"foreign_keys"`
}

// ForeignKeyConstraintConfig is one YAML entry of ForeignKeyConfig.
type ForeignKeyConstraintConfig struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete,omitempty"`
	OnUpdate        string `yaml:"on_update,omitempty"`
	ConstraintName  string `yaml:"constraint_name,omitempty"`
	Description     string `yaml:"description,omitempty"`
}

func (c ForeignKeyConstraintConfig) toConstraint() ForeignKeyConstraint {
	return ForeignKeyConstraint{
		Table:           c.Table,
		Column:          c.Column,
		ReferenceTable:  c.ReferenceTable,
		ReferenceColumn: c.ReferenceColumn,
		OnDelete:        c.OnDelete,
		OnUpdate:        c.OnUpdate,
		ConstraintName:  c.ConstraintName,
	}
}

// ConfigurableForeignKeyManager reads constraints from a YAML file and falls
// back to the code-defined defaults when the file is absent or unreadable.
type ConfigurableForeignKeyManager struct {
	*ForeignKeyManager
	configPath string
}

func NewConfigurableForeignKeyManager(logger Logger, configPath string) *ConfigurableForeignKeyManager {
	if logger == nil {
		logger = GetLogger()
	}
	m := &ConfigurableForeignKeyManager{configPath: configPath}
	constraints, err := m.loadFromConfig()
	if err != nil {
		logger.Debug("Using code-defined foreign keys", "reason", err.Error(), "config_path", configPath)
		constraints = defaultForeignKeys()
	}
	m.ForeignKeyManager = &ForeignKeyManager{constraints: constraints, logger: logger}
	return m
}

func (m *ConfigurableForeignKeyManager) loadFromConfig() ([]ForeignKeyConstraint, error) {
	if m.configPath == "" {
		return nil, fmt.Errorf("no foreign key file configured")
	}
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg ForeignKeyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	constraints := make([]ForeignKeyConstraint, 0, len(cfg.ForeignKeys))
	for _, fk := range cfg.ForeignKeys {
		constraints = append(constraints, fk.toConstraint())
	}
	return constraints, nil
}

// ReloadConfig re-reads the YAML file, keeping the current set on error.
func (m *ConfigurableForeignKeyManager) ReloadConfig() error {
	constraints, err := m.loadFromConfig()
	if err != nil {
		return err
	}
	m.constraints = constraints
	return nil
}

// ExportToConfig writes the current constraints as YAML to outputPath.
func (m *ConfigurableForeignKeyManager) ExportToConfig(outputPath string) error {
	out := ForeignKeyConfig{ForeignKeys: make([]ForeignKeyConstraintConfig, 0, len(m.constraints))}
	for _, c := range m.constraints {
		out.ForeignKeys = append(out.ForeignKeys, ForeignKeyConstraintConfig{
			Table:           c.Table,
			Column:          c.Column,
			ReferenceTable:  c.ReferenceTable,
			ReferenceColumn: c.ReferenceColumn,
			OnDelete:        c.OnDelete,
			OnUpdate:        c.OnUpdate,
			ConstraintName:  c.ConstraintName,
			Description:     fmt.Sprintf("%s.%s -> %s.%s", c.Table, c.Column, c.ReferenceTable, c.ReferenceColumn),
		})
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}

func (m *ConfigurableForeignKeyManager) GetConfigPath() string {
	return m.configPath
}
