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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// PathFormat controls how the caller location is rendered.
type PathFormat int

const (
	PathFormatTruncatedRelative PathFormat = iota
	PathFormatFilenameOnly
	PathFormatShortRelative
	PathFormatFullRelative
)

var (
	faint   = color.New(color.Faint)
	magenta = color.New(color.FgMagenta)
	cyan    = color.New(color.FgCyan)

	levelColors = map[logrus.Level]*color.Color{
		logrus.PanicLevel: color.New(color.FgRed),
		logrus.FatalLevel: color.New(color.FgRed),
		logrus.ErrorLevel: color.New(color.FgRed),
		logrus.WarnLevel:  color.New(color.FgYellow),
		logrus.InfoLevel:  color.New(color.FgGreen),
		logrus.DebugLevel: color.New(color.FgBlue),
		logrus.TraceLevel: color.New(color.FgMagenta),
	}
)

// Log4jColorFormatter renders
// "2006-01-02 15:04:05.000   INFO 4242   - [main]   DATABASE caller : msg k=v".
type Log4jColorFormatter struct {
	LoggerName      string
	TimestampFormat string
	PathFmt         PathFormat
	ColorCaller     bool
	NameWidth       int
	CallerWidth     int
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.Format(tsFormat(f.TimestampFormat))
	lvl := levelColors[entry.Level].Sprint(fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String())))
	pid := magenta.Sprintf("%-6d", os.Getpid())
	name := cyan.Sprint(padLeftRunes(limitRunes(f.LoggerName, f.NameWidth), f.NameWidth))

	callerInfo := ""
	if entry.Caller != nil {
		loc := callerLocation(entry.Caller, f.PathFmt, f.CallerWidth)
		if f.CallerWidth > 0 {
			loc = padLeftRunes(loc, f.CallerWidth)
		}
		callerInfo = " " + loc
		if f.ColorCaller {
			callerInfo = faint.Sprint(callerInfo)
		}
	}

	msg := entry.Message
	if len(entry.Data) > 0 {
		msg += " " + renderFields(entry.Data)
	}
	line := fmt.Sprintf("%s %s %s - %s %s%s %s %s\n", ts, lvl, pid, magenta.Sprint("[main]"), name, callerInfo, faint.Sprint(":"), msg)
	return []byte(line), nil
}

// JSONLogFormatter writes one JSON object per entry; entry fields go under
// "fields".
type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
	PathFmt         PathFormat
}

type jsonLogRecord struct {
	Time    string                 `json:"time"`
	Level   string                 `json:"level"`
	Model   string                 `json:"model"`
	Caller  string                 `json:"caller,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	rec := jsonLogRecord{
		Time:    entry.Time.Format(tsFormat(f.TimestampFormat)),
		Level:   entry.Level.String(),
		Model:   f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = callerLocation(entry.Caller, f.PathFmt, 0)
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func tsFormat(s string) string {
	if s != "" {
		return s
	}
	return defaultTimestampFormat
}

// renderFields prints k=v pairs sorted by key.
func renderFields(data logrus.Fields) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}

func callerLocation(c *runtime.Frame, pf PathFormat, width int) string {
	line := strconv.Itoa(c.Line)
	switch pf {
	case PathFormatFilenameOnly:
		return filepath.Base(c.File) + ":" + line
	case PathFormatShortRelative:
		return lastSegments(moduleRelative(filepath.ToSlash(c.File)), 2) + ":" + line
	case PathFormatFullRelative:
		return moduleRelative(filepath.ToSlash(c.File)) + ":" + line
	default:
		rel := moduleRelative(filepath.ToSlash(c.File))
		if width > 0 {
			rel = dotPathCompact(rel, width-len(line)-1)
		}
		return rel + ":" + line
	}
}

var (
	moduleRootOnce sync.Once
	moduleRoot     string
)

// moduleRelative strips the directory of the nearest go.mod, falling back to
// the main module's last path element.
func moduleRelative(p string) string {
	moduleRootOnce.Do(func() { moduleRoot = findModuleRootFrom(p) })
	if moduleRoot != "" && strings.HasPrefix(p, moduleRoot+"/") {
		return strings.TrimPrefix(p, moduleRoot+"/")
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Path != "" {
		base := lastSegments(info.Main.Path, 1)
		if idx := strings.Index(p, base+"/"); idx >= 0 {
			return p[idx:]
		}
	}
	return p
}

func findModuleRootFrom(p string) string {
	dir := filepath.Dir(p)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.ToSlash(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func lastSegments(p string, n int) string {
	parts := strings.Split(p, "/")
	if len(parts) <= n {
		return p
	}
	return strings.Join(parts[len(parts)-n:], "/")
}

// dotPathCompact turns "a/b/file.go" into "a.b.file.go" and abbreviates
// directories to their first letter until the result fits in max runes.
func dotPathCompact(p string, max int) string {
	if max <= 0 {
		return ""
	}
	parts := strings.Split(p, "/")
	dirs, file := parts[:len(parts)-1], parts[len(parts)-1]
	out := strings.Join(append(append([]string{}, dirs...), file), ".")
	for i := 0; len([]rune(out)) > max && i < len(dirs); i++ {
		if r := []rune(dirs[i]); len(r) > 0 {
			dirs[i] = string(r[0])
		}
		out = strings.Join(append(append([]string{}, dirs...), file), ".")
	}
	if r := []rune(out); len(r) > max {
		return string(r[len(r)-max:])
	}
	return out
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

func padLeftRunes(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(r)) + s
}
