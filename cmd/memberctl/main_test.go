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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/memberquery/model"
	"github.com/tomoncle/memberquery/types"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "memberctl.yaml")
	yaml := "connection:\n  type: sqlite\n  dbname: " + filepath.Join(dir, "ctl") + "\n  max_open_conns: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func runJSON(t *testing.T, args ...string) types.PageResult[model.MemberDto] {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), args, &out))
	var page types.PageResult[model.MemberDto]
	require.NoError(t, json.Unmarshal(out.Bytes(), &page))
	return page
}

func TestRunSeedsAndPages(t *testing.T) {
	cfg := writeConfig(t)
	noEnv := filepath.Join(t.TempDir(), "missing.env")

	page := runJSON(t, "-config", cfg, "-env-file", noEnv, "-seed", "-size", "3")
	assert.EqualValues(t, 100, page.TotalElements)
	require.Len(t, page.Content, 3)
	assert.Equal(t, "user1", page.Content[0].Username)
	assert.Equal(t, "user10", page.Content[1].Username)
	assert.Equal(t, "user100", page.Content[2].Username)
	assert.NotEmpty(t, page.Content[0].TeamName)

	// A second seed run leaves the data alone.
	page = runJSON(t, "-config", cfg, "-env-file", noEnv, "-seed", "-age-plus", "50", "-sort", "age,desc", "-size", "2")
	assert.EqualValues(t, 100, page.TotalElements)
	assert.Equal(t, "user100", page.Content[0].Username)
}

func TestRunRejectsBadInput(t *testing.T) {
	cfg := writeConfig(t)
	ctx := context.Background()
	var out bytes.Buffer

	err := run(ctx, []string{"-config", cfg, "-sort", "age,sideways"}, &out)
	assert.True(t, types.IsInvalidPageRequest(err), "got %v", err)

	err = run(ctx, []string{"-config", cfg, "-size", "0"}, &out)
	assert.True(t, types.IsInvalidPageRequest(err), "got %v", err)

	err = run(ctx, []string{"-config", filepath.Join(t.TempDir(), "absent.yaml")}, &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
