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
	"github.com/samber/lo"
	"github.com/tomoncle/memberquery/types"
	"github.com/uptrace/bun"
)

// PredicateFunc adapts a plain function to Predicate.
type PredicateFunc func(q *bun.SelectQuery) *bun.SelectQuery

func (f PredicateFunc) Apply(q *bun.SelectQuery) *bun.SelectQuery { return f(q) }

// All matches every row.
func All() Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery { return q })
}

// Where turns a raw filter into a predicate. Column references in the
// filter should be qualified with ?TableAlias when the query joins.
func Where(filter *types.QueryFilter) Predicate {
	if filter.IsEmpty() {
		return All()
	}
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(filter.Schema, filter.Args...)
	})
}

// And requires every predicate to hold. Nil entries are ignored.
func And(ps ...Predicate) Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, p := range ps {
			if p != nil {
				q = p.Apply(q)
			}
		}
		return q
	})
}

// Or matches rows satisfying at least one predicate. Nil predicates are
// skipped; with none left it matches nothing.
func Or(ps ...Predicate) Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		live := lo.Filter(ps, func(p Predicate, _ int) bool { return p != nil })
		if len(live) == 0 {
			return q.Where("1 = 0")
		}
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, p := range live {
				q = q.WhereGroup(" OR ", p.Apply)
			}
			return q
		})
	})
}

func UsernameEq(username string) Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.username = ?", username)
	})
}

// UsernameIn matches any of usernames. An empty list matches nothing.
func UsernameIn(usernames ...string) Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		if len(usernames) == 0 {
			return q.Where("1 = 0")
		}
		return q.Where("?TableAlias.username IN (?)", bun.In(usernames))
	})
}

func AgeEq(age int) Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.age = ?", age)
	})
}

func AgeGreaterThan(age int) Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.age > ?", age)
	})
}

func AgeAtLeast(age int) Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.age >= ?", age)
	})
}

func TeamIDEq(teamID int64) Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.team_id = ?", teamID)
	})
}

func TeamIsNull() Predicate {
	return PredicateFunc(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.team_id IS NULL")
	})
}

func orAll(p Predicate) Predicate {
	if p == nil {
		return All()
	}
	return p
}
