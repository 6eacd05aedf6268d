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

package types

import (
	"github.com/code19m/errx"
)

// Error codes returned by repositories and services.
const (
	CodeInvalidPageRequest    = "INVALID_PAGE_REQUEST"
	CodeStorageUnavailable    = "STORAGE_UNAVAILABLE"
	CodeLockOutsideUnitOfWork = "LOCK_OUTSIDE_UNIT_OF_WORK"
	CodeLockNotAcquired       = "LOCK_NOT_ACQUIRED"
	CodeMultipleRowsFound     = "MULTIPLE_ROWS_FOUND"
	CodeDuplicateKey          = "DUPLICATE_KEY"
	CodeConstraintViolation   = "CONSTRAINT_VIOLATION"
)

// InvalidPageRequest reports bad paging or sorting input from the caller.
func InvalidPageRequest(reason string, details errx.D) error {
	return errx.New(reason,
		errx.WithCode(CodeInvalidPageRequest),
		errx.WithType(errx.T_Validation),
		errx.WithDetails(nonNil(details)),
	)
}

// StorageUnavailable wraps a failure of the backing store. Callers may retry
// with backoff.
func StorageUnavailable(err error, details errx.D) error {
	return errx.Wrap(err,
		errx.WithCode(CodeStorageUnavailable),
		errx.WithDetails(nonNil(details)),
	)
}

// LockOutsideUnitOfWork rejects a locking read issued without a transaction
// to hold the lock.
func LockOutsideUnitOfWork(details errx.D) error {
	return errx.New("locking read requires a unit of work",
		errx.WithCode(CodeLockOutsideUnitOfWork),
		errx.WithType(errx.T_Validation),
		errx.WithDetails(nonNil(details)),
	)
}

// LockNotAcquired reports that the wait for a row lock ended before the lock
// was granted.
func LockNotAcquired(err error, details errx.D) error {
	return errx.Wrap(err,
		errx.WithCode(CodeLockNotAcquired),
		errx.WithType(errx.T_Conflict),
		errx.WithDetails(nonNil(details)),
	)
}

func MultipleRowsFound(details errx.D) error {
	return errx.New("more than one row matched a single-row lookup",
		errx.WithCode(CodeMultipleRowsFound),
		errx.WithType(errx.T_Conflict),
		errx.WithDetails(nonNil(details)),
	)
}

func DuplicateKey(err error, details errx.D) error {
	return errx.Wrap(err,
		errx.WithCode(CodeDuplicateKey),
		errx.WithType(errx.T_Conflict),
		errx.WithDetails(nonNil(details)),
	)
}

func ConstraintViolation(err error, details errx.D) error {
	return errx.Wrap(err,
		errx.WithCode(CodeConstraintViolation),
		errx.WithType(errx.T_Validation),
		errx.WithDetails(nonNil(details)),
	)
}

// IsInvalidPageRequest reports whether err carries CodeInvalidPageRequest.
func IsInvalidPageRequest(err error) bool {
	return err != nil && errx.IsCodeIn(err, CodeInvalidPageRequest)
}

// IsStorageUnavailable reports whether err carries CodeStorageUnavailable.
func IsStorageUnavailable(err error) bool {
	return err != nil && errx.IsCodeIn(err, CodeStorageUnavailable)
}

func IsLockNotAcquired(err error) bool {
	return err != nil && errx.IsCodeIn(err, CodeLockNotAcquired)
}

func IsLockOutsideUnitOfWork(err error) bool {
	return err != nil && errx.IsCodeIn(err, CodeLockOutsideUnitOfWork)
}

func IsMultipleRowsFound(err error) bool {
	return err != nil && errx.IsCodeIn(err, CodeMultipleRowsFound)
}

func IsDuplicateKey(err error) bool {
	return err != nil && errx.IsCodeIn(err, CodeDuplicateKey)
}

func IsConstraintViolation(err error) bool {
	return err != nil && errx.IsCodeIn(err, CodeConstraintViolation)
}

func nonNil(d errx.D) errx.D {
	if d == nil {
		return errx.D{}
	}
	return d
}
