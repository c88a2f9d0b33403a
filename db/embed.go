// Package db provides embedded database schemas and seed data.
package db

import _ "embed"

// Schema contains the PostgreSQL DDL for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SQLiteSchema is the same layout for the embedded SQLite store. Timestamps
// are stored as unix nanoseconds.
//
//go:embed sqlite/001_schema.sql
var SQLiteSchema string

// Donuts is the default flavor catalog as a JSON array of strings.
//
//go:embed seed/donuts.json
var Donuts []byte
