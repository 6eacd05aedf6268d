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

import "time"

// BaseEntity carries audit columns. They are set explicitly by the caller
// that creates or updates the row; nothing fills them implicitly.
type BaseEntity struct {
	CreatedDate      time.Time `bun:"created_date,notnull" json:"createdDate"`
	LastModifiedDate time.Time `bun:"last_modified_date,notnull" json:"lastModifiedDate"`
	CreatedBy        string    `bun:"created_by" json:"createdBy,omitempty"`
	LastModifiedBy   string    `bun:"last_modified_by" json:"lastModifiedBy,omitempty"`
}

// MarkCreated stamps both the creation and modification columns.
func (e *BaseEntity) MarkCreated(now time.Time, by string) {
	e.CreatedDate = now
	e.CreatedBy = by
	e.MarkModified(now, by)
}

// MarkModified stamps only the modification columns.
func (e *BaseEntity) MarkModified(now time.Time, by string) {
	e.LastModifiedDate = now
	e.LastModifiedBy = by
}
