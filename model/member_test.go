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

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/memberquery/database"
)

func TestAuditStamps(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMember("user1", 10, nil)
	m.MarkCreated(created, "alice")

	later := created.Add(time.Hour)
	m.MarkModified(later, "bob")

	assert.Equal(t, created, m.CreatedDate)
	assert.Equal(t, "alice", m.CreatedBy)
	assert.Equal(t, later, m.LastModifiedDate)
	assert.Equal(t, "bob", m.LastModifiedBy)
}

func TestChangeTeamAndDto(t *testing.T) {
	team := &Team{ID: 7, Name: "teamA"}
	m := NewMember("user1", 10, team)
	require.NotNil(t, m.TeamID)
	assert.EqualValues(t, 7, *m.TeamID)
	assert.Equal(t, MemberDto{Username: "user1", TeamName: "teamA"}, m.Dto())

	m.ChangeTeam(nil)
	assert.Nil(t, m.TeamID)
	assert.Equal(t, "", m.Dto().TeamName)
}

func TestModelsRegisteredInDependencyOrder(t *testing.T) {
	instances := database.RegisteredModelInstances()
	require.Len(t, instances, 2)
	assert.IsType(t, (*Team)(nil), instances[0])
	assert.IsType(t, (*Member)(nil), instances[1])
}
