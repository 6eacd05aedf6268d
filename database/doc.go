// Package database opens and supervises bun connections to MySQL, PostgreSQL
// or SQLite, runs versioned migrations for registered models, seeds data from
// SQL files and classifies driver errors.
package database
