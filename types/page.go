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
	"math"
	"sync"

	"github.com/code19m/errx"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// PageRequest describes a zero-based page, its size, and ordering.
type PageRequest struct {
	PageNumber int  `json:"pageNumber" validate:"gte=0"`
	PageSize   int  `json:"pageSize" validate:"gt=0"`
	Sort       Sort `json:"sort,omitempty" validate:"omitempty,dive"`
}

// NewPageRequest constructs a PageRequest with the given ordering.
func NewPageRequest(pageNumber, pageSize int, orders ...Order) PageRequest {
	return PageRequest{PageNumber: pageNumber, PageSize: pageSize, Sort: orders}
}

// Validate rejects negative page numbers, non-positive sizes, blank sort
// fields, and offsets that do not fit in an int.
func (p PageRequest) Validate() error {
	if err := getValidator().Struct(p); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields = lo.Map(verrs, func(fe validator.FieldError, _ int) string {
				return fe.Namespace() + ":" + fe.Tag()
			})
		}
		return InvalidPageRequest("invalid page request", errx.D{
			"pageNumber": p.PageNumber,
			"pageSize":   p.PageSize,
			"violations": fields,
		})
	}
	for _, o := range p.Sort {
		if !o.Direction.IsValid() {
			return InvalidPageRequest("invalid sort direction", errx.D{"field": o.Field})
		}
	}
	if p.PageNumber > 0 && p.PageNumber > math.MaxInt/p.PageSize {
		return InvalidPageRequest("page offset overflows", errx.D{
			"pageNumber": p.PageNumber,
			"pageSize":   p.PageSize,
		})
	}
	return nil
}

// Offset is PageNumber*PageSize. Only meaningful after Validate succeeded.
func (p PageRequest) Offset() int {
	return p.PageNumber * p.PageSize
}

// Next returns the request for the following page with the same size and sort.
func (p PageRequest) Next() PageRequest {
	return PageRequest{PageNumber: p.PageNumber + 1, PageSize: p.PageSize, Sort: p.Sort}
}

// ExpectedContentLength is min(pageSize, total - offset) clamped at zero.
func ExpectedContentLength(total int64, p PageRequest) int {
	rest := total - int64(p.Offset())
	if rest <= 0 {
		return 0
	}
	if rest < int64(p.PageSize) {
		return int(rest)
	}
	return p.PageSize
}

// PageResult holds one page of content along with the total match count.
type PageResult[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	PageNumber    int   `json:"pageNumber"`
	PageSize      int   `json:"pageSize"`
}

// NewPageResult builds a result for request p. A nil content becomes empty.
func NewPageResult[T any](content []T, total int64, p PageRequest) PageResult[T] {
	if content == nil {
		content = make([]T, 0)
	}
	return PageResult[T]{
		Content:       content,
		TotalElements: total,
		PageNumber:    p.PageNumber,
		PageSize:      p.PageSize,
	}
}

// TotalPages is ceil(TotalElements / PageSize).
func (r PageResult[T]) TotalPages() int {
	if r.PageSize <= 0 {
		return 0
	}
	return int((r.TotalElements + int64(r.PageSize) - 1) / int64(r.PageSize))
}

func (r PageResult[T]) HasNext() bool {
	return r.PageNumber+1 < r.TotalPages()
}

func (r PageResult[T]) IsFirst() bool {
	return r.PageNumber == 0
}

func (r PageResult[T]) IsLast() bool {
	return !r.HasNext()
}

// MapPage converts the content of a page while keeping its counters.
func MapPage[T, R any](r PageResult[T], fn func(T) R) PageResult[R] {
	return PageResult[R]{
		Content:       lo.Map(r.Content, func(item T, _ int) R { return fn(item) }),
		TotalElements: r.TotalElements,
		PageNumber:    r.PageNumber,
		PageSize:      r.PageSize,
	}
}

// SliceResult is a page without a total count.
type SliceResult[T any] struct {
	Content    []T  `json:"content"`
	PageNumber int  `json:"pageNumber"`
	PageSize   int  `json:"pageSize"`
	HasNext    bool `json:"hasNext"`
}

// NewSliceResult trims rows read with a PageSize+1 limit down to PageSize and
// records whether the extra row existed.
func NewSliceResult[T any](rows []T, p PageRequest) SliceResult[T] {
	hasNext := len(rows) > p.PageSize
	if hasNext {
		rows = rows[:p.PageSize]
	}
	if rows == nil {
		rows = make([]T, 0)
	}
	return SliceResult[T]{Content: rows, PageNumber: p.PageNumber, PageSize: p.PageSize, HasNext: hasNext}
}
