// Package postgres implements the store interfaces on PostgreSQL through
// database/sql and the pgx driver. Schema migrations are embedded in the
// binary and applied with goose.
package postgres
