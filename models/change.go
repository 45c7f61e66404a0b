// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package models

import "time"

// Operation is the kind of mutation a change record describes.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is one of the three known mutation kinds.
// Mutations enter the engine exclusively through typed stamper calls, so an
// unknown operation on the wire means a misbehaving backend, not local code.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// UploadState tracks whether a change record has been acknowledged by every
// currently enabled backend.
type UploadState string

const (
	// UploadPending means at least one enabled backend has not acknowledged
	// the change yet.
	UploadPending UploadState = "pending"

	// Uploaded means every enabled backend's push watermark has passed the
	// change's timestamp. Only uploaded records are eligible for reaping.
	Uploaded UploadState = "uploaded"
)

// ChangeRecord is the local bookkeeping entry for one stamped column write.
// The (TableName, RowID, ColumnName) triple is the primary key: a newer stamp
// to the same cell replaces the outstanding record instead of appending.
type ChangeRecord struct {
	TableName   string      `json:"table_name"`
	RowID       string      `json:"row_id"`
	ColumnName  string      `json:"column_name"`
	Op          Operation   `json:"op"`
	HLC         HLC         `json:"hlc"`
	UploadState UploadState `json:"upload_state"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ChangeMessage is the wire shape of one column change, pushed to and pulled
// from sync backends.
type ChangeMessage struct {
	TableName  string    `json:"table_name"`
	RowID      string    `json:"row_id"`
	ColumnName string    `json:"column_name"`
	Op         Operation `json:"op"`
	HLC        HLC       `json:"hlc"`

	// Value is the column value after the change. Nil encodes SQL NULL.
	// Replicated columns are TEXT (vault payloads are ciphertext strings),
	// so a single nullable string covers the whole contract.
	Value *string `json:"value"`
}

// RemoteChange is a pulled ChangeMessage plus the ordering the backend
// assigned when it accepted the change.
type RemoteChange struct {
	ChangeMessage

	// ServerSeq is the backend-assigned ordering of the change. It is
	// informational: merge correctness depends only on the HLC.
	ServerSeq int64 `json:"server_seq"`
}
