// Package model holds the bun models of members and teams and registers them
// for migration.
package model
