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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeignKeyGenerateSQL(t *testing.T) {
	fk := ForeignKeyConstraint{
		Table: "members", Column: "team_id",
		ReferenceTable: "teams", ReferenceColumn: "id",
		OnDelete: "set null",
	}
	assert.Equal(t, "fk_members_team_id", fk.GenerateConstraintName())
	assert.Equal(t,
		"ALTER TABLE members ADD CONSTRAINT fk_members_team_id FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE SET NULL",
		fk.GenerateSQL())

	fk.ConstraintName = "member_team"
	fk.OnUpdate = "cascade"
	assert.Contains(t, fk.GenerateSQL(), "ADD CONSTRAINT member_team ")
	assert.Contains(t, fk.GenerateSQL(), "ON UPDATE CASCADE")
}

func TestValidateConstraints(t *testing.T) {
	fkm := &ForeignKeyManager{constraints: []ForeignKeyConstraint{
		{Table: "members", Column: "team_id", ReferenceTable: "teams", ReferenceColumn: "id", OnDelete: "explode"},
		{Column: "x", ReferenceTable: "y", ReferenceColumn: "z"},
	}, logger: GetLogger()}
	assert.Len(t, fkm.ValidateConstraints(), 2)

	assert.Empty(t, NewForeignKeyManager(nil).ValidateConstraints())
	assert.Len(t, NewForeignKeyManager(nil).GetConstraintsByTable("MEMBERS"), 1)
}

func TestConfigurableForeignKeyManager(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
foreign_keys:
  - table: members
    column: team_id
    reference_table: teams
    reference_column: id
    on_delete: CASCADE
  - table: audits
    column: member_id
    reference_table: members
    reference_column: id
`), 0o644))

	m := NewConfigurableForeignKeyManager(nil, path)
	require.Len(t, m.ListAllConstraints(), 2)
	assert.Equal(t, "CASCADE", m.GetConstraintsByTable("members")[0].OnDelete)

	out := filepath.Join(dir, "export", "fk.yaml")
	require.NoError(t, m.ExportToConfig(out))
	again := NewConfigurableForeignKeyManager(nil, out)
	assert.Equal(t, m.ListAllConstraints(), again.ListAllConstraints())

	fallback := NewConfigurableForeignKeyManager(nil, filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, defaultForeignKeys(), fallback.ListAllConstraints())
	assert.Error(t, fallback.ReloadConfig())
}
