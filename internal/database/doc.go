// Package database provides the PostgreSQL connection pool used by the
// gateway event journal.
package database
