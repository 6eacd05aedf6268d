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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tomoncle/memberquery/database"
	"github.com/tomoncle/memberquery/types"
)

func startPostgres(t *testing.T) *database.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("members"),
		postgres.WithUsername("member"),
		postgres.WithPassword("member"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return &database.Config{
		ConnectionConfig: database.ConnectionConfig{
			Type:     database.TypePostgres,
			Driver:   database.DriverPGX,
			Host:     host,
			Port:     port.Int(),
			Username: "member",
			Password: "member",
			DBName:   "members",
		},
		DataMigrateConfig: database.DataMigrateConfig{EnableMigrateOnStartup: true, EnableForeignKey: true},
	}
}

func TestPostgresSelectForUpdate(t *testing.T) {
	cfg := startPostgres(t)
	ctx := context.Background()
	factory, err := database.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })

	repo := NewMemberRepository(factory.GetDB(), WithClock(fixedClock))
	seedMembers(t, repo, 100)

	page, err := repo.FindByPredicate(ctx, All(), types.NewPageRequest(0, 5, types.Asc("username")))
	require.NoError(t, err)
	assert.EqualValues(t, 100, page.TotalElements)
	assert.Equal(t, "user1", page.Content[0].Username)

	n, err := repo.BulkIncrementAge(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 51, n)

	locked := make(chan struct{})
	finish := make(chan struct{})
	holderDone := make(chan error, 1)
	go func() {
		holderDone <- repo.WithinUnitOfWork(ctx, func(ctx context.Context, tx *MemberRepository) error {
			if _, _, err := tx.FindOneByUsername(ctx, "user1", true); err != nil {
				return err
			}
			close(locked)
			<-finish
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	err = repo.WithinUnitOfWork(waitCtx, func(ctx context.Context, tx *MemberRepository) error {
		_, _, err := tx.FindOneByUsername(ctx, "user1", true)
		return err
	})
	assert.True(t, types.IsLockNotAcquired(err), "got %v", err)

	close(finish)
	require.NoError(t, <-holderDone)
	assert.Zero(t, lockTableFor(repo.root).size(), "postgres locks rows in the engine")
}
