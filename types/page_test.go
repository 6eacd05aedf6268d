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

package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     PageRequest
		wantErr bool
	}{
		{"first page", NewPageRequest(0, 5), false},
		{"with sort", NewPageRequest(3, 10, Asc("username"), Desc("age")), false},
		{"negative page", NewPageRequest(-1, 5), true},
		{"zero size", NewPageRequest(0, 0), true},
		{"negative size", NewPageRequest(0, -3), true},
		{"blank sort field", NewPageRequest(0, 5, Order{Field: ""}), true},
		{"bad direction", NewPageRequest(0, 5, Order{Field: "age", Direction: Direction(7)}), true},
		{"offset overflow", NewPageRequest(math.MaxInt/2, 3), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsInvalidPageRequest(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestExpectedContentLength(t *testing.T) {
	assert.Equal(t, 5, ExpectedContentLength(100, NewPageRequest(0, 5)))
	assert.Equal(t, 3, ExpectedContentLength(13, NewPageRequest(2, 5)))
	assert.Equal(t, 0, ExpectedContentLength(10, NewPageRequest(2, 5)))
	assert.Equal(t, 0, ExpectedContentLength(0, NewPageRequest(0, 5)))
	assert.Equal(t, 0, ExpectedContentLength(4, NewPageRequest(9, 5)))
}

func TestPageResultDerived(t *testing.T) {
	r := NewPageResult([]int{1, 2, 3, 4, 5}, 13, NewPageRequest(0, 5))
	assert.Equal(t, 3, r.TotalPages())
	assert.True(t, r.IsFirst())
	assert.True(t, r.HasNext())
	assert.False(t, r.IsLast())

	last := NewPageResult([]int{11, 12, 13}, 13, NewPageRequest(2, 5))
	assert.False(t, last.HasNext())
	assert.True(t, last.IsLast())

	empty := NewPageResult[int](nil, 0, NewPageRequest(0, 5))
	assert.NotNil(t, empty.Content)
	assert.Equal(t, 0, empty.TotalPages())
	assert.True(t, empty.IsLast())
}

func TestPageResultJSON(t *testing.T) {
	r := NewPageResult([]string{"user1"}, 100, NewPageRequest(0, 5))
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.ElementsMatch(t, []string{"content", "totalElements", "pageNumber", "pageSize"}, keys(m))
	assert.EqualValues(t, 100, m["totalElements"])
}

func TestMapPage(t *testing.T) {
	r := NewPageResult([]int{1, 2}, 7, NewPageRequest(1, 2))
	out := MapPage(r, func(i int) string { return string(rune('a' + i)) })
	assert.Equal(t, []string{"b", "c"}, out.Content)
	assert.EqualValues(t, 7, out.TotalElements)
	assert.Equal(t, 1, out.PageNumber)
	assert.Equal(t, 2, out.PageSize)
}

func TestNewSliceResult(t *testing.T) {
	s := NewSliceResult([]int{1, 2, 3}, NewPageRequest(0, 2))
	assert.Equal(t, []int{1, 2}, s.Content)
	assert.True(t, s.HasNext)

	s = NewSliceResult([]int{1}, NewPageRequest(4, 2))
	assert.Equal(t, []int{1}, s.Content)
	assert.False(t, s.HasNext)

	s = NewSliceResult[int](nil, NewPageRequest(4, 2))
	assert.NotNil(t, s.Content)
}

func TestPageRequestNext(t *testing.T) {
	p := NewPageRequest(0, 5, Asc("username"))
	n := p.Next()
	assert.Equal(t, 1, n.PageNumber)
	assert.Equal(t, 5, n.Offset())
	assert.Equal(t, p.Sort, n.Sort)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
