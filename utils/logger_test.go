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

package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	SetConsoleWriter(&buf)
	t.Cleanup(func() { SetConsoleWriter(os.Stdout) })

	l := NewLogger("UTILS_TEST")
	l.WithFields(logrus.Fields{"rows": 51, "age": 50}).Info("bulk update")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "UTILS_TEST")
	assert.Contains(t, out, "bulk update age=50 rows=51")
	assert.Same(t, l, NewLogger("UTILS_TEST"))
}

func TestSetLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	SetConsoleWriter(&buf)
	t.Cleanup(func() { SetConsoleWriter(os.Stdout) })

	l := NewLogger("UTILS_LEVEL")
	require.True(t, SetLoggerLevel("UTILS_LEVEL", "warn"))
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	assert.False(t, SetLoggerLevel("NO_SUCH_LOGGER", "debug"))
}

func TestJSONLogFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "JSON"}
	e := logrus.NewEntry(logrus.New()).WithField("username", "user1")
	e.Message = "lookup"
	e.Level = logrus.DebugLevel

	b, err := f.Format(e)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.Equal(t, "debug", rec["level"])
	assert.Equal(t, "JSON", rec["model"])
	assert.Equal(t, "lookup", rec["message"])
	assert.Equal(t, map[string]any{"username": "user1"}, rec["fields"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.TraceLevel, ParseLogLevel(" trace "))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("loud"))
}

func TestDotPathCompact(t *testing.T) {
	assert.Equal(t, "repository.member.go", dotPathCompact("repository/member.go", 40))
	out := dotPathCompact("internal/repository/member.go", 14)
	assert.LessOrEqual(t, len(out), 14)
	assert.True(t, strings.HasSuffix(out, "member.go"))
}
