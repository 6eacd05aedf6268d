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
	"time"

	"github.com/code19m/errx"
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/memberquery/database"
	"github.com/tomoncle/memberquery/model"
	"github.com/tomoncle/memberquery/types"
	"github.com/tomoncle/memberquery/utils"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

var _ MemberQueryEngine = (*MemberRepository)(nil)

// MemberRepository is the member query engine. A repository returned by
// NewMemberRepository runs each call in its own implicit transaction; the
// one handed to a WithinUnitOfWork callback is bound to that unit of work.
type MemberRepository struct {
	Repository[model.Member]

	db     bun.IDB
	root   *bun.DB
	locks  *keyLockTable
	uow    *unitOfWork
	clock  func() time.Time
	logger *logrus.Logger
}

// MemberOption configures a MemberRepository.
type MemberOption func(*MemberRepository)

// WithClock sets the time source for last_modified_date on bulk updates.
func WithClock(clock func() time.Time) MemberOption {
	return func(r *MemberRepository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func WithLogger(logger *logrus.Logger) MemberOption {
	return func(r *MemberRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewMemberRepository(db *bun.DB, opts ...MemberOption) *MemberRepository {
	r := &MemberRepository{
		Repository: NewRepository[model.Member](db),
		db:         db,
		root:       db,
		locks:      lockTableFor(db),
		clock:      time.Now,
		logger:     utils.NewLogger("REPOSITORY"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MemberRepository) bind(tx bun.Tx, uow *unitOfWork) *MemberRepository {
	bound := *r
	bound.Repository = r.Repository.WithTx(tx)
	bound.db = tx
	bound.uow = uow
	return &bound
}

// InUnitOfWork reports whether the repository is bound to a transaction.
func (r *MemberRepository) InUnitOfWork() bool { return r.uow != nil }

// WithinUnitOfWork runs fn in one transaction. Key locks taken through the
// repository passed to fn are released after commit or rollback. Called on a
// repository already bound to a unit of work, fn joins it.
func (r *MemberRepository) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context, repo *MemberRepository) error) error {
	if r.uow != nil {
		return fn(ctx, r)
	}

	uow := newUnitOfWork(r.locks)
	defer uow.release()

	tx, err := r.root.BeginTx(ctx, nil)
	if err != nil {
		return readError("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, r.bind(tx, uow)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return writeError("commit", err)
	}
	committed = true
	return nil
}

func (r *MemberRepository) FindByPredicate(ctx context.Context, p Predicate, page types.PageRequest) (types.PageResult[model.Member], error) {
	result, err := findPage[model.Member](ctx, r.db, p, page)
	if err != nil {
		return result, err
	}
	r.logger.WithFields(logrus.Fields{
		"page":  page.PageNumber,
		"size":  page.PageSize,
		"sort":  page.Sort.String(),
		"total": result.TotalElements,
		"rows":  len(result.Content),
	}).Debug("member page query")
	return result, nil
}

// FindPageWithTeam is FindByPredicate with Team loaded on every row.
func (r *MemberRepository) FindPageWithTeam(ctx context.Context, p Predicate, page types.PageRequest) (types.PageResult[model.Member], error) {
	return findPage[model.Member](ctx, r.db, p, page, "Team")
}

// Update writes m by primary key. The creation audit columns are never
// rewritten.
func (r *MemberRepository) Update(ctx context.Context, m *model.Member) error {
	_, err := r.db.NewUpdate().
		Model(m).
		ExcludeColumn("created_date", "created_by").
		WherePK().
		Exec(ctx)
	if err != nil {
		return writeError("update_member", err)
	}
	return nil
}

// FindSliceByPredicate pages without a count query.
func (r *MemberRepository) FindSliceByPredicate(ctx context.Context, p Predicate, page types.PageRequest) (types.SliceResult[model.Member], error) {
	return findSlice[model.Member](ctx, r.db, p, page)
}

// FindAll lists every match in sort order, primary key last.
func (r *MemberRepository) FindAll(ctx context.Context, p Predicate, sort types.Sort) ([]model.Member, error) {
	orders, err := orderTerms(tableOf[model.Member](r.db), sort)
	if err != nil {
		return nil, err
	}
	var rows []model.Member
	query := applyOrder(orAll(p).Apply(r.db.NewSelect().Model(&rows)), orders)
	if err := query.Scan(ctx); err != nil {
		return nil, readError("find_all", err)
	}
	return rows, nil
}

func (r *MemberRepository) BulkIncrementAge(ctx context.Context, thresholdAge int) (int, error) {
	res, err := r.db.NewUpdate().
		Model((*model.Member)(nil)).
		Set("age = age + 1").
		Set("last_modified_date = ?", r.clock()).
		Where("age >= ?", thresholdAge).
		Exec(ctx)
	if err != nil {
		return 0, writeError("bulk_increment_age", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, readError("bulk_increment_age", err)
	}
	r.logger.WithFields(logrus.Fields{"threshold": thresholdAge, "rows": n}).Debug("bulk age increment")
	return int(n), nil
}

func (r *MemberRepository) FindOneByUsername(ctx context.Context, username string, lockForWrite bool) (*model.Member, bool, error) {
	details := errx.D{"username": username}
	forUpdate := false
	if lockForWrite {
		if r.uow == nil {
			return nil, false, types.LockOutsideUnitOfWork(details)
		}
		switch r.db.Dialect().Name() {
		case dialect.PG, dialect.MySQL:
			forUpdate = true
		default:
			if err := r.uow.lock(ctx, "members/username/"+username); err != nil {
				r.logger.WithFields(logrus.Fields{"username": username, "error": err}).Warn("member lock wait canceled")
				return nil, false, types.LockNotAcquired(err, details)
			}
			if err := r.beginWrite(ctx, username); err != nil {
				if _, kind := database.IsSqlError(err); ctx.Err() != nil || kind == database.LockNotAvailableErr {
					r.logger.WithFields(logrus.Fields{"username": username, "error": err}).Warn("member lock wait canceled")
					return nil, false, types.LockNotAcquired(err, details)
				}
				return nil, false, readError("find_one_by_username", err)
			}
		}
	}

	// Two rows are enough to tell a unique match from an ambiguous one.
	var rows []model.Member
	query := r.db.NewSelect().Model(&rows).
		Where("?TableAlias.username = ?", username).
		OrderExpr("?TableAlias.id ASC").
		Limit(2)
	if forUpdate {
		query = query.For("UPDATE")
	}
	if err := query.Scan(ctx); err != nil {
		if forUpdate && ctx.Err() != nil {
			r.logger.WithFields(logrus.Fields{"username": username, "error": err}).Warn("member lock wait canceled")
			return nil, false, types.LockNotAcquired(err, details)
		}
		return nil, false, readError("find_one_by_username", err)
	}

	switch len(rows) {
	case 0:
		return nil, false, nil
	case 1:
		return &rows[0], true, nil
	default:
		return nil, false, types.MultipleRowsFound(details)
	}
}

// beginWrite turns the SQLite transaction into a write transaction by
// touching the locked row. From then on other writers wait on the busy
// timeout until the unit of work ends, and the holder can write without
// racing them for the database lock.
func (r *MemberRepository) beginWrite(ctx context.Context, username string) error {
	_, err := r.db.NewUpdate().
		Model((*model.Member)(nil)).
		Set("username = username").
		Where("username = ?", username).
		Exec(ctx)
	return err
}

// FindUsernames returns every username in id order.
func (r *MemberRepository) FindUsernames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.NewSelect().
		Model((*model.Member)(nil)).
		Column("username").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, readError("find_usernames", err)
	}
	return names, nil
}

// FindMemberDtos inner-joins teams, so members without a team are omitted.
func (r *MemberRepository) FindMemberDtos(ctx context.Context) ([]model.MemberDto, error) {
	var dtos []model.MemberDto
	err := r.db.NewSelect().
		Model((*model.Member)(nil)).
		ColumnExpr("?TableAlias.id").
		ColumnExpr("?TableAlias.username").
		ColumnExpr("t.name AS team_name").
		Join("JOIN teams AS t ON t.id = ?TableAlias.team_id").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx, &dtos)
	if err != nil {
		return nil, readError("find_member_dtos", err)
	}
	return dtos, nil
}

// FindWithTeam loads the matches with Team filled in by a left join.
func (r *MemberRepository) FindWithTeam(ctx context.Context, p Predicate) ([]model.Member, error) {
	var rows []model.Member
	query := orAll(p).Apply(r.db.NewSelect().Model(&rows).Relation("Team")).
		OrderExpr("?TableAlias.id ASC")
	if err := query.Scan(ctx); err != nil {
		return nil, readError("find_with_team", err)
	}
	return rows, nil
}

// FindAllRaw reads members through a hand-written statement.
func (r *MemberRepository) FindAllRaw(ctx context.Context) ([]model.Member, error) {
	var rows []model.Member
	err := r.db.NewRaw(
		"SELECT id, username, age, team_id, created_date, last_modified_date, created_by, last_modified_by FROM ? ORDER BY id",
		bun.Ident("members"),
	).Scan(ctx, &rows)
	if err != nil {
		return nil, readError("find_all_raw", err)
	}
	return rows, nil
}
