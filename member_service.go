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

package memberquery

import (
	"context"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/memberquery/model"
	"github.com/tomoncle/memberquery/repository"
	"github.com/tomoncle/memberquery/types"
	"github.com/tomoncle/memberquery/utils"
	"github.com/uptrace/bun"
)

// DefaultCacheSize bounds the member mirror when WithCacheSize is not given.
const DefaultCacheSize = 256

// DefaultPageRequest is used by List when the caller passes no request.
func DefaultPageRequest() types.PageRequest {
	return types.NewPageRequest(0, 5, types.Asc("username"))
}

type auditorKey struct{}

// ContextWithAuditor attaches the id recorded in createdBy/lastModifiedBy
// for writes made with ctx.
func ContextWithAuditor(ctx context.Context, auditor string) context.Context {
	return context.WithValue(ctx, auditorKey{}, auditor)
}

// AuditorFromContext returns the auditor set by ContextWithAuditor.
func AuditorFromContext(ctx context.Context) (string, bool) {
	auditor, ok := ctx.Value(auditorKey{}).(string)
	return auditor, ok && auditor != ""
}

// MemberService is the facade over the member repository. It stamps audit
// columns explicitly and mirrors members read by id in an LRU cache.
type MemberService struct {
	repo      *repository.MemberRepository
	teams     Service[model.Team]
	mirror    *lru.Cache[int64, model.Member]
	clock     func() time.Time
	auditor   func(ctx context.Context) string
	cacheSize int
	logger    *logrus.Logger
}

type ServiceOption func(*MemberService)

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *MemberService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAuditor replaces the auditor lookup. The default uses the context
// value and falls back to a per-service id.
func WithAuditor(auditor func(ctx context.Context) string) ServiceOption {
	return func(s *MemberService) {
		if auditor != nil {
			s.auditor = auditor
		}
	}
}

func WithCacheSize(size int) ServiceOption {
	return func(s *MemberService) {
		if size > 0 {
			s.cacheSize = size
		}
	}
}

func WithLogger(logger *logrus.Logger) ServiceOption {
	return func(s *MemberService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewMemberService builds the service on db.
func NewMemberService(db *bun.DB, opts ...ServiceOption) (*MemberService, error) {
	instance := "system-" + uuid.NewString()
	s := &MemberService{
		teams:     NewServiceWithDB[model.Team](db),
		clock:     time.Now,
		cacheSize: DefaultCacheSize,
		logger:    utils.NewLogger("SERVICE"),
		auditor: func(ctx context.Context) string {
			if auditor, ok := AuditorFromContext(ctx); ok {
				return auditor
			}
			return instance
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	mirror, err := lru.New[int64, model.Member](s.cacheSize)
	if err != nil {
		return nil, err
	}
	s.mirror = mirror
	s.repo = repository.NewMemberRepository(db,
		repository.WithClock(s.clock),
		repository.WithLogger(utils.NewLogger("REPOSITORY")),
	)
	return s, nil
}

// Repository exposes the underlying query engine.
func (s *MemberService) Repository() *repository.MemberRepository { return s.repo }

func (s *MemberService) CreateTeam(ctx context.Context, name string) (*model.Team, error) {
	team := &model.Team{Name: name}
	if err := s.teams.Save(ctx, team); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"team": name, "id": team.ID}).Debug("team created")
	return team, nil
}

// Join inserts a new member, optionally into team.
func (s *MemberService) Join(ctx context.Context, username string, age int, team *model.Team) (*model.Member, error) {
	m := model.NewMember(username, age, team)
	m.MarkCreated(s.clock(), s.auditor(ctx))
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.remember(*m)
	s.logger.WithFields(logrus.Fields{"member": username, "id": m.ID}).Debug("member joined")
	return m, nil
}

// Get reads a member by id, serving repeated reads from the mirror.
func (s *MemberService) Get(ctx context.Context, id int64) (*model.Member, bool, error) {
	if cached, ok := s.mirror.Get(id); ok {
		return &cached, true, nil
	}
	m, ok, err := s.repo.GetOne(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	s.remember(*m)
	return m, true, nil
}

// Update stamps the modification audit columns and writes m.
func (s *MemberService) Update(ctx context.Context, m *model.Member) error {
	m.MarkModified(s.clock(), s.auditor(ctx))
	if err := s.repo.Update(ctx, m); err != nil {
		s.mirror.Remove(m.ID)
		return err
	}
	s.remember(*m)
	return nil
}

// List returns a page of member DTOs including team names.
func (s *MemberService) List(ctx context.Context, req *types.PageRequest) (types.PageResult[model.MemberDto], error) {
	page := DefaultPageRequest()
	if req != nil {
		page = *req
	}
	members, err := s.repo.FindPageWithTeam(ctx, repository.All(), page)
	if err != nil {
		return types.PageResult[model.MemberDto]{}, err
	}
	return types.MapPage(members, model.Member.Dto), nil
}

func (s *MemberService) Search(ctx context.Context, p repository.Predicate, req types.PageRequest) (types.PageResult[model.Member], error) {
	return s.repo.FindByPredicate(ctx, p, req)
}

// BulkAgePlus ages every member at or above thresholdAge by one year and
// drops the mirror, whose entries are stale from then on.
func (s *MemberService) BulkAgePlus(ctx context.Context, thresholdAge int) (int, error) {
	n, err := s.repo.BulkIncrementAge(ctx, thresholdAge)
	if err != nil {
		return 0, err
	}
	s.mirror.Purge()
	s.logger.WithFields(logrus.Fields{"threshold": thresholdAge, "rows": n}).Info("bulk age increment")
	return n, nil
}

// LockByUsername runs fn inside a unit of work with the member row locked
// for writing. m is nil when no member has username. The lock is held until
// fn returns and the unit of work ends.
func (s *MemberService) LockByUsername(ctx context.Context, username string,
	fn func(ctx context.Context, tx *repository.MemberRepository, m *model.Member) error) error {
	var locked *model.Member
	err := s.repo.WithinUnitOfWork(ctx, func(ctx context.Context, tx *repository.MemberRepository) error {
		m, ok, err := tx.FindOneByUsername(ctx, username, true)
		if err != nil {
			return err
		}
		if ok {
			locked = m
		}
		return fn(ctx, tx, locked)
	})
	if locked != nil {
		s.mirror.Remove(locked.ID)
	}
	return err
}

func (s *MemberService) Usernames(ctx context.Context) ([]string, error) {
	return s.repo.FindUsernames(ctx)
}

// MemberDtos lists members that belong to a team.
func (s *MemberService) MemberDtos(ctx context.Context) ([]model.MemberDto, error) {
	return s.repo.FindMemberDtos(ctx)
}

func (s *MemberService) WithTeams(ctx context.Context, p repository.Predicate) ([]model.Member, error) {
	return s.repo.FindWithTeam(ctx, p)
}

// Cached reports whether the mirror holds id.
func (s *MemberService) Cached(id int64) bool {
	return s.mirror.Contains(id)
}

func (s *MemberService) remember(m model.Member) {
	m.Team = nil
	s.mirror.Add(m.ID, m)
}
