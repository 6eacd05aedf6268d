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
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/memberquery/database"
	"github.com/tomoncle/memberquery/model"
	"github.com/tomoncle/memberquery/repository"
	"github.com/tomoncle/memberquery/types"
	"github.com/uptrace/bun"
)

var serviceNow = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

func sqliteConfig(t *testing.T) *database.Config {
	t.Helper()
	return &database.Config{
		ConnectionConfig: database.ConnectionConfig{
			Type:         database.TypeSQLite,
			DBName:       filepath.Join(t.TempDir(), "service"),
			MaxOpenConns: 4,
		},
		DataMigrateConfig: database.DataMigrateConfig{EnableMigrateOnStartup: true},
	}
}

func openDB(t *testing.T) *bun.DB {
	t.Helper()
	factory, err := database.Open(context.Background(), sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })
	return factory.GetDB()
}

func newService(t *testing.T, opts ...ServiceOption) *MemberService {
	t.Helper()
	clock := func() time.Time { return serviceNow }
	svc, err := NewMemberService(openDB(t), append([]ServiceOption{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return svc
}

func TestJoinAndGet(t *testing.T) {
	svc := newService(t)
	ctx := ContextWithAuditor(context.Background(), "alice")

	team, err := svc.CreateTeam(ctx, "teamA")
	require.NoError(t, err)
	m, err := svc.Join(ctx, "member1", 10, team)
	require.NoError(t, err)
	require.NotZero(t, m.ID)
	assert.Equal(t, "alice", m.CreatedBy)
	assert.Equal(t, "alice", m.LastModifiedBy)
	assert.True(t, svc.Cached(m.ID))

	got, ok, err := svc.Get(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "member1", got.Username)

	// Mutating a returned member must not leak into the mirror.
	got.Age = 1000
	again, _, err := svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, again.Age)

	_, ok, err = svc.Get(ctx, m.ID+42)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.CreateTeam(ctx, "teamA")
	assert.True(t, types.IsDuplicateKey(err), "got %v", err)
}

func TestDefaultAuditor(t *testing.T) {
	svc := newService(t)
	m, err := svc.Join(context.Background(), "member1", 10, nil)
	require.NoError(t, err)
	assert.Contains(t, m.CreatedBy, "system-")

	other := newService(t, WithAuditor(func(context.Context) string { return "batch" }))
	m, err = other.Join(context.Background(), "member2", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, "batch", m.CreatedBy)
}

func TestUpdateKeepsCreatedDate(t *testing.T) {
	now := serviceNow
	svc := newService(t, WithClock(func() time.Time { return now }))
	ctx := ContextWithAuditor(context.Background(), "alice")

	m, err := svc.Join(ctx, "member1", 10, nil)
	require.NoError(t, err)

	now = serviceNow.Add(24 * time.Hour)
	m.Age = 11
	require.NoError(t, svc.Update(ContextWithAuditor(context.Background(), "bob"), m))

	stored, ok, err := svc.Repository().FindOneByUsername(ctx, "member1", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 11, stored.Age)
	assert.True(t, stored.CreatedDate.Equal(serviceNow))
	assert.Equal(t, "alice", stored.CreatedBy)
	assert.True(t, stored.LastModifiedDate.Equal(now))
	assert.Equal(t, "bob", stored.LastModifiedBy)

	cached, _, err := svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, cached.Age, "update refreshes the mirror")
}

func TestBulkAgePlusPurgesMirror(t *testing.T) {
	svc := newService(t, WithCacheSize(8))
	ctx := context.Background()

	var ids []int64
	for i := 1; i <= 100; i++ {
		m, err := svc.Join(ctx, fmt.Sprintf("user%d", i), i, nil)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	assert.False(t, svc.Cached(ids[0]), "mirror is bounded")
	assert.True(t, svc.Cached(ids[99]))

	stale, _, err := svc.Get(ctx, ids[49])
	require.NoError(t, err)
	assert.Equal(t, 50, stale.Age)

	n, err := svc.BulkAgePlus(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 51, n)
	assert.False(t, svc.Cached(ids[49]))

	fresh, _, err := svc.Get(ctx, ids[49])
	require.NoError(t, err)
	assert.Equal(t, 51, fresh.Age)
}

func TestListDefaultsAndSearch(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	team, err := svc.CreateTeam(ctx, "teamA")
	require.NoError(t, err)
	for i := 1; i <= 12; i++ {
		var in *model.Team
		if i%2 == 0 {
			in = team
		}
		_, err := svc.Join(ctx, fmt.Sprintf("user%d", i), i, in)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 12, page.TotalElements)
	assert.Equal(t, 5, page.PageSize)
	require.Len(t, page.Content, 5)
	want := []string{"user1", "user10", "user11", "user12", "user2"}
	for i, dto := range page.Content {
		assert.Equal(t, want[i], dto.Username)
	}
	assert.Equal(t, "teamA", page.Content[1].TeamName)
	assert.Empty(t, page.Content[0].TeamName)

	req := types.NewPageRequest(1, 5, types.Desc("age"))
	page, err = svc.List(ctx, &req)
	require.NoError(t, err)
	assert.Equal(t, "user7", page.Content[0].Username)

	found, err := svc.Search(ctx, repository.AgeAtLeast(10), types.NewPageRequest(0, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 3, found.TotalElements)

	_, err = svc.Search(ctx, nil, types.NewPageRequest(0, 0))
	assert.True(t, types.IsInvalidPageRequest(err))

	dtos, err := svc.MemberDtos(ctx)
	require.NoError(t, err)
	assert.Len(t, dtos, 6)

	names, err := svc.Usernames(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 12)

	withTeams, err := svc.WithTeams(ctx, repository.TeamIDEq(team.ID))
	require.NoError(t, err)
	require.Len(t, withTeams, 6)
	assert.Equal(t, "teamA", withTeams[0].Team.Name)
}

func TestLockByUsername(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	m, err := svc.Join(ctx, "member1", 10, nil)
	require.NoError(t, err)

	err = svc.LockByUsername(ctx, "member1", func(ctx context.Context, tx *repository.MemberRepository, locked *model.Member) error {
		require.NotNil(t, locked)
		locked.Age = 20
		return tx.Update(ctx, locked)
	})
	require.NoError(t, err)
	assert.False(t, svc.Cached(m.ID))

	got, _, err := svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Age)

	err = svc.LockByUsername(ctx, "ghost", func(_ context.Context, _ *repository.MemberRepository, locked *model.Member) error {
		assert.Nil(t, locked)
		return nil
	})
	assert.NoError(t, err)

	_, _, err = svc.Repository().FindOneByUsername(ctx, "member1", true)
	assert.True(t, types.IsLockOutsideUnitOfWork(err))
}

func TestGenericServiceOnGlobalDB(t *testing.T) {
	_, err := database.InitDB(sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })

	teams := NewService[model.Team]()
	ctx := context.Background()
	require.NoError(t, teams.Save(ctx, &model.Team{Name: "teamA"}, &model.Team{Name: "teamB"}))
	require.NoError(t, teams.SaveOrUpdate(ctx, []string{"name"}, []string{"name"}, &model.Team{Name: "teamA"}))

	all, err := teams.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	listed, err := teams.List(ctx, types.NewQueryFilter("name = ?", "teamB"))
	require.NoError(t, err)
	require.Len(t, listed, 1)

	page, err := teams.Page(ctx, nil, types.NewPageRequest(0, 1, types.Desc("name")))
	require.NoError(t, err)
	assert.Equal(t, "teamB", page.Content[0].Name)

	err = database.GetDB().RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return teams.WithTx(tx).Delete(ctx, listed[0].ID)
	})
	require.NoError(t, err)
	_, ok, err := teams.Get(ctx, listed[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := teams.SelectBuilder().Model((*model.Team)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
