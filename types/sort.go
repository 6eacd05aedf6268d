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
	"fmt"
	"strings"

	"github.com/code19m/errx"
)

// Order is a single (field, direction) sort key. Field is the public field
// name (e.g. "username", "teamId"); repositories map it to a column.
type Order struct {
	Field     string    `json:"field" validate:"required"`
	Direction Direction `json:"direction"`
}

// Asc returns an ascending order on field.
func Asc(field string) Order { return Order{Field: field, Direction: Ascending} }

// Desc returns a descending order on field.
func Desc(field string) Order { return Order{Field: field, Direction: Descending} }

func (o Order) String() string {
	return o.Field + "," + o.Direction.Name()
}

// Sort is an ordered sequence of sort keys; earlier keys take precedence.
type Sort []Order

// Contains reports whether field already appears in the sort.
func (s Sort) Contains(field string) bool {
	for _, o := range s {
		if o.Field == field {
			return true
		}
	}
	return false
}

func (s Sort) String() string {
	parts := make([]string, len(s))
	for i, o := range s {
		parts[i] = o.String()
	}
	return strings.Join(parts, ";")
}

// ParseSort parses "field[,dir][;field[,dir]...]", e.g. "username;age,desc".
// The direction defaults to ascending.
func ParseSort(expr string) (Sort, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var sort Sort
	for _, pair := range strings.Split(expr, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) > 2 {
			return nil, InvalidPageRequest(fmt.Sprintf("malformed sort key %q", pair), errx.D{"sort": expr})
		}
		field := strings.TrimSpace(parts[0])
		if field == "" {
			return nil, InvalidPageRequest(fmt.Sprintf("empty sort field in %q", pair), errx.D{"sort": expr})
		}
		dir := Ascending
		if len(parts) == 2 {
			d, ok := ParseDirection(parts[1])
			if !ok {
				return nil, InvalidPageRequest(fmt.Sprintf("invalid sort direction %q", parts[1]), errx.D{"sort": expr})
			}
			dir = d
		}
		sort = append(sort, Order{Field: field, Direction: dir})
	}
	return sort, nil
}
