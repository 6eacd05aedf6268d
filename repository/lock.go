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
	"runtime"
	"sync"
	"weak"

	"github.com/uptrace/bun"
	"golang.org/x/sync/semaphore"
)

// keyLockTable serialises writers on a logical row key for engines without
// SELECT ... FOR UPDATE. Entries are dropped once nobody holds or waits.
type keyLockTable struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

// lockTables maps weak.Pointer[bun.DB] to *keyLockTable. An entry is
// removed once its handle is garbage collected.
var lockTables sync.Map

// lockTableFor returns the table shared by every repository on db.
func lockTableFor(db *bun.DB) *keyLockTable {
	key := weak.Make(db)
	if t, ok := lockTables.Load(key); ok {
		return t.(*keyLockTable)
	}
	t, loaded := lockTables.LoadOrStore(key, &keyLockTable{locks: make(map[string]*keyLock)})
	if !loaded {
		runtime.AddCleanup(db, func(k weak.Pointer[bun.DB]) { lockTables.Delete(k) }, key)
	}
	return t.(*keyLockTable)
}

// acquire blocks until key is free or ctx ends.
func (t *keyLockTable) acquire(ctx context.Context, key string) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &keyLock{sem: semaphore.NewWeighted(1)}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		t.unref(key, l)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.sem.Release(1)
			t.unref(key, l)
		})
	}, nil
}

func (t *keyLockTable) unref(key string, l *keyLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 && t.locks[key] == l {
		delete(t.locks, key)
	}
}

func (t *keyLockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// unitOfWork tracks the key locks taken inside one transaction.
type unitOfWork struct {
	table *keyLockTable
	mu    sync.Mutex
	held  map[string]func()
}

func newUnitOfWork(table *keyLockTable) *unitOfWork {
	return &unitOfWork{table: table, held: make(map[string]func())}
}

// lock takes key once per unit of work. Re-locking a held key is a no-op.
func (u *unitOfWork) lock(ctx context.Context, key string) error {
	u.mu.Lock()
	_, ok := u.held[key]
	u.mu.Unlock()
	if ok {
		return nil
	}

	release, err := u.table.acquire(ctx, key)
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.held[key] = release
	u.mu.Unlock()
	return nil
}

func (u *unitOfWork) release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for key, release := range u.held {
		release()
		delete(u.held, key)
	}
}
