// Package db provides the embedded goose migrations and seed data.
package db

import "embed"

// Migrations holds the goose SQL migrations, rooted at "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads from.
const MigrationsDir = "migrations"
