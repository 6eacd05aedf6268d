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
	"database/sql"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/code19m/errx"
	"github.com/tomoncle/memberquery/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	db bun.IDB
}

// NewRepository returns a generic repository bound to db, which may be a
// *bun.DB or a bun.Tx.
func NewRepository[T any](db bun.IDB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db}
}

func (r *baseRepositoryImpl[T]) WithTx(db bun.IDB) Repository[T] {
	return &baseRepositoryImpl[T]{db: db}
}

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.db.NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.db.NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.db.NewDelete() }

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, id any) (*T, bool, error) {
	var entity T
	err := r.db.NewSelect().Model(&entity).
		Where("?TableAlias.? = ?", bun.Ident(primaryKey(tableOf[T](r.db))), id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, readError("get_one", err)
	}
	return &entity, true, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context) ([]*T, error) {
	var entities []*T
	if err := r.db.NewSelect().Model(&entities).Scan(ctx); err != nil {
		return nil, readError("get_all", err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	var entities []*T
	query := Where(filter).Apply(r.db.NewSelect().Model(&entities))
	if err := query.Scan(ctx); err != nil {
		return nil, readError("list", err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Query(ctx context.Context, where string, args ...interface{}) ([]*T, error) {
	return r.List(ctx, types.NewQueryFilter(where, args...))
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, p Predicate, page types.PageRequest) (types.PageResult[T], error) {
	return findPage[T](ctx, r.db, p, page)
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	if len(entity) == 0 {
		return nil
	}
	entities := append([]*T(nil), entity...)
	if _, err := r.db.NewInsert().Model(&entities).Exec(ctx); err != nil {
		return writeError("create", err)
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	if _, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx); err != nil {
		return writeError("update", err)
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) error {
	_, err := r.db.NewDelete().Model((*T)(nil)).
		Where("? = ?", bun.Ident(primaryKey(tableOf[T](r.db))), id).
		Exec(ctx)
	if err != nil {
		return writeError("delete", err)
	}
	return nil
}

// Upsert inserts the entities and, on a conflict over duplicateKeys
// (default "id"), overwrites fields with the incoming values.
func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return errx.New("upsert requires at least one field", errx.WithType(errx.T_Validation))
	}
	if len(entity) == 0 {
		return nil
	}
	entities := append([]*T(nil), entity...)
	query := r.db.NewInsert().Model(&entities)

	features := r.db.Dialect().Features()
	switch {
	case features.Has(feature.InsertOnConflict):
		if len(duplicateKeys) == 0 {
			duplicateKeys = []string{"id"}
		}
		sets := make([]string, len(fields))
		for i, field := range fields {
			sets[i] = fmt.Sprintf("%[1]s = EXCLUDED.%[1]s", field)
		}
		query = query.On("CONFLICT (" + strings.Join(duplicateKeys, ", ") + ") DO UPDATE").
			Set(strings.Join(sets, ", "))
	case features.Has(feature.InsertOnDuplicateKey):
		sets := make([]string, len(fields))
		for i, field := range fields {
			sets[i] = fmt.Sprintf("%[1]s = VALUES(%[1]s)", field)
		}
		query = query.On("DUPLICATE KEY UPDATE " + strings.Join(sets, ", "))
	default:
		return errx.New("dialect supports no upsert form",
			errx.WithDetails(errx.D{"dialect": r.db.Dialect().Name().String()}))
	}

	if _, err := query.Exec(ctx); err != nil {
		return writeError("upsert", err)
	}
	return nil
}

// findPage counts the matches first and skips the row query when the page
// starts past the end. Relations are joined into the row query only.
func findPage[T any](ctx context.Context, db bun.IDB, p Predicate, page types.PageRequest, relations ...string) (types.PageResult[T], error) {
	var empty types.PageResult[T]
	if err := page.Validate(); err != nil {
		return empty, err
	}
	orders, err := orderTerms(tableOf[T](db), page.Sort)
	if err != nil {
		return empty, err
	}
	p = orAll(p)

	total, err := p.Apply(db.NewSelect().Model((*T)(nil))).Count(ctx)
	if err != nil {
		return empty, readError("count", err)
	}
	if total == 0 || page.Offset() >= total {
		return types.NewPageResult[T](nil, int64(total), page), nil
	}

	var rows []T
	query := db.NewSelect().Model(&rows)
	for _, rel := range relations {
		query = query.Relation(rel)
	}
	query = applyOrder(p.Apply(query), orders).
		Limit(page.PageSize).
		Offset(page.Offset())
	if err := query.Scan(ctx); err != nil {
		return empty, readError("page", err)
	}
	return types.NewPageResult(rows, int64(total), page), nil
}

// findSlice reads one row past the page to learn whether another page
// exists, without counting.
func findSlice[T any](ctx context.Context, db bun.IDB, p Predicate, page types.PageRequest) (types.SliceResult[T], error) {
	var empty types.SliceResult[T]
	if err := page.Validate(); err != nil {
		return empty, err
	}
	orders, err := orderTerms(tableOf[T](db), page.Sort)
	if err != nil {
		return empty, err
	}

	limit := page.PageSize
	if limit < math.MaxInt {
		limit++
	}
	var rows []T
	query := orAll(p).Apply(db.NewSelect().Model(&rows))
	query = applyOrder(query, orders).
		Limit(limit).
		Offset(page.Offset())
	if err := query.Scan(ctx); err != nil {
		return empty, readError("slice", err)
	}
	return types.NewSliceResult(rows, page), nil
}

func tableOf[T any](db bun.IDB) *schema.Table {
	return db.Dialect().Tables().Get(reflect.TypeFor[T]())
}

func primaryKey(table *schema.Table) string {
	if len(table.PKs) == 0 {
		return "id"
	}
	return table.PKs[0].Name
}

type orderTerm struct {
	column    string
	direction types.Direction
}

// orderTerms maps public sort fields to columns of table. A field matches a
// column by its SQL name or, ignoring case, by its Go field name, so
// "teamId" resolves to team_id. Primary key columns not already named are
// appended ascending so that equal sort keys still page deterministically.
func orderTerms(table *schema.Table, sort types.Sort) ([]orderTerm, error) {
	terms := make([]orderTerm, 0, len(sort)+len(table.PKs))
	named := make(map[string]bool, len(sort))
	for _, o := range sort {
		field := lookupField(table, o.Field)
		if field == nil {
			return nil, types.InvalidPageRequest(
				fmt.Sprintf("unknown sort field %q", o.Field),
				errx.D{"field": o.Field, "table": table.Name},
			)
		}
		terms = append(terms, orderTerm{column: field.Name, direction: o.Direction})
		named[field.Name] = true
	}
	for _, pk := range table.PKs {
		if !named[pk.Name] {
			terms = append(terms, orderTerm{column: pk.Name, direction: types.Ascending})
		}
	}
	return terms, nil
}

func lookupField(table *schema.Table, name string) *schema.Field {
	for _, f := range table.Fields {
		if f.Name == name || strings.EqualFold(f.GoName, name) {
			return f
		}
	}
	return nil
}

func applyOrder(q *bun.SelectQuery, terms []orderTerm) *bun.SelectQuery {
	for _, t := range terms {
		q = q.OrderExpr("?TableAlias.? "+t.direction.String(), bun.Ident(t.column))
	}
	return q
}
