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
	"github.com/code19m/errx"
	"github.com/tomoncle/memberquery/database"
	"github.com/tomoncle/memberquery/types"
)

// readError classifies a failed read. Every engine failure on the read path
// surfaces as STORAGE_UNAVAILABLE with the driver classification attached.
func readError(op string, err error) error {
	_, kind := database.IsSqlError(err)
	return types.StorageUnavailable(err, errx.D{
		"operation": op,
		"sql_kind":  kind.String(),
	})
}

// writeError separates constraint failures, which retrying cannot fix, from
// storage failures.
func writeError(op string, err error) error {
	_, kind := database.IsSqlError(err)
	details := errx.D{
		"operation": op,
		"sql_kind":  kind.String(),
	}
	switch {
	case kind == database.DuplicateKeyErr:
		return types.DuplicateKey(err, details)
	case kind.IsConstraintViolation():
		return types.ConstraintViolation(err, details)
	default:
		return types.StorageUnavailable(err, details)
	}
}
