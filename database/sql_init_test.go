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

func TestSplitSQLStatements(t *testing.T) {
	content := `
-- seed teams
INSERT INTO teams (name)
  VALUES ('teamA');
INSERT INTO teams (name) VALUES ('teamB');

UPDATE teams SET name = name`
	assert.Equal(t, []string{
		"INSERT INTO teams (name) VALUES ('teamA');",
		"INSERT INTO teams (name) VALUES ('teamB');",
		"UPDATE teams SET name = name",
	}, splitSQLStatements(content))
	assert.Empty(t, splitSQLStatements("-- only a comment\n\n"))
}

func TestParseFileOrder(t *testing.T) {
	assert.Equal(t, 1, parseFileOrder("001_teams.sql"))
	assert.Equal(t, 20, parseFileOrder("20_members.sql"))
	assert.Equal(t, unorderedFile, parseFileOrder("teams.sql"))
}

func writeSQL(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGetSQLFilesOrdering(t *testing.T) {
	root := t.TempDir()
	writeSQL(t, filepath.Join(root, "common", "002_b.sql"), "SELECT 1;")
	writeSQL(t, filepath.Join(root, "common", "001_a.sql"), "SELECT 1;")
	writeSQL(t, filepath.Join(root, "common", "notes.txt"), "ignored")
	writeSQL(t, filepath.Join(root, "environments", "test", "001_c.sql"), "SELECT 1;")
	writeSQL(t, filepath.Join(root, "environments", "prod", "001_d.sql"), "SELECT 1;")

	s := NewSQLInitManager(nil, "test")
	s.SetSQLRootPath(root)
	files, err := s.GetSQLFiles()
	require.NoError(t, err)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"001_a.sql", "002_b.sql", "001_c.sql"}, names)
	assert.Equal(t, "test", files[2].Environment)

	s.SetSQLRootPath(filepath.Join(root, "nothing-here"))
	files, err = s.GetSQLFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestReplaceEnvVariables(t *testing.T) {
	t.Setenv("SEED_TEAM", "teamZ")
	s := NewSQLInitManager(nil, "test")
	out, err := s.replaceEnvVariables("INSERT INTO teams (name) VALUES ('{{.SEED_TEAM}}-{{.ENVIRONMENT}}');")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO teams (name) VALUES ('teamZ-test');", out)

	_, err = s.replaceEnvVariables("{{ .Broken ")
	assert.Error(t, err)
}
