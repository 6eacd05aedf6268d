// Package repository implements paged, predicate-driven queries over bun:
// a generic CRUD repository, and the member query engine with its bulk age
// update, locking lookups and units of work.
package repository
