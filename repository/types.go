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

package repository

import (
	"context"

	"github.com/tomoncle/memberquery/model"
	"github.com/tomoncle/memberquery/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Predicate narrows a select query. Implementations only add WHERE clauses
// so the same predicate serves both the count and the row query.
type Predicate interface {
	Apply(q *bun.SelectQuery) *bun.SelectQuery
}

// CrudRepository defines basic CRUD operations for a generic entity type.
// Lookups by id report absence through the boolean, not an error.
type CrudRepository[T any] interface {
	GetOne(ctx context.Context, id any) (*T, bool, error)
	GetAll(ctx context.Context) ([]*T, error)
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)
	Query(ctx context.Context, where string, args ...interface{}) ([]*T, error)
	Create(ctx context.Context, entity ...*T) error
	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id any) error
}

// PageQueryRepository pages through entities matching a predicate.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, p Predicate, page types.PageRequest) (types.PageResult[T], error)
}

// Repository combines CRUD and paging and exposes the bun builders of the
// bound connection for queries the interface does not cover.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]
	WithTx(db bun.IDB) Repository[T]
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}

// MemberQueryEngine is the paged query, bulk update and locked lookup
// surface for members.
type MemberQueryEngine interface {
	// FindByPredicate counts all matches, then reads the requested page when
	// its offset lies inside the count.
	FindByPredicate(ctx context.Context, p Predicate, page types.PageRequest) (types.PageResult[model.Member], error)

	// BulkIncrementAge adds one to the age of every member aged at least
	// thresholdAge in one statement and returns the number of rows changed.
	BulkIncrementAge(ctx context.Context, thresholdAge int) (int, error)

	// FindOneByUsername returns the single member with username. With
	// lockForWrite the row stays locked until the enclosing unit of work ends.
	FindOneByUsername(ctx context.Context, username string, lockForWrite bool) (*model.Member, bool, error)
}
