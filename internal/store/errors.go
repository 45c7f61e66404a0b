// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrClockStateNotFound is returned when the vault clock row has not been
	// initialized yet. The engine treats this as "first open of the vault".
	ErrClockStateNotFound = errors.New("vault clock state not found")

	// ErrBackendNotFound is returned when a query targets a sync backend id
	// that does not exist in the local bookkeeping.
	ErrBackendNotFound = errors.New("sync backend was not found")

	// ErrConflictNotFound is returned when a resolution update targets a
	// conflict record that does not exist.
	ErrConflictNotFound = errors.New("conflict record was not found")

	// ErrRowNotFound is returned when a replicated-table operation targets a
	// row id that does not exist in the table.
	ErrRowNotFound = errors.New("replicated row was not found")

	// ErrUnknownTable is returned when an operation names a table that is not
	// part of the replicated schema. Unknown tables arriving on a pull are
	// not errors — they are recorded by the schema-skew handler — but local
	// code addressing an unknown table is a bug.
	ErrUnknownTable = errors.New("table is not part of the replicated schema")

	// ErrUnknownColumn is returned when a local operation targets a column
	// the table does not have.
	ErrUnknownColumn = errors.New("column does not exist on table")

	// ErrVaultKeyNotFound is returned when the local data-encryption key has
	// not been generated yet.
	ErrVaultKeyNotFound = errors.New("vault key not found")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails (e.g. invalid argument count or unsupported type).
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning column values from a single
	// result row into a destination struct fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails, typically mid-result-set.
	ErrScanningRows = errors.New("failed to scan rows")
)
