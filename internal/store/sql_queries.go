// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

const (
	getClockState = `
		SELECT node_id, last_hlc
		FROM vault_clock
		WHERE id = 1;`

	initClockState = `
		INSERT INTO vault_clock (id, node_id, last_hlc)
		VALUES (1, ?, ?);`

	saveLastHLC = `
		UPDATE vault_clock
		SET last_hlc = ?
		WHERE id = 1;`

	replaceChangeRecord = `
		INSERT INTO change_log (
			table_name,
			row_id,
			column_name,
			op,
			hlc,
			upload_state,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (table_name, row_id, column_name) DO UPDATE SET
			op           = excluded.op,
			hlc          = excluded.hlc,
			upload_state = excluded.upload_state,
			created_at   = excluded.created_at;`

	pendingForCell = `
		SELECT EXISTS (
			SELECT 1 FROM change_log
			WHERE table_name = ? AND row_id = ? AND column_name = ? AND hlc > ?
		);`

	hasPendingForTable = `
		SELECT EXISTS (
			SELECT 1 FROM change_log
			WHERE table_name = ? AND upload_state = 'pending'
		);`

	markUploadedThrough = `
		UPDATE change_log
		SET upload_state = 'uploaded'
		WHERE upload_state = 'pending' AND hlc <= ?;`

	upsertDirtyTable = `
		INSERT INTO dirty_tables (table_name, modified_at)
		VALUES (?, ?)
		ON CONFLICT (table_name) DO UPDATE SET
			modified_at = excluded.modified_at;`

	listDirtyTables = `
		SELECT table_name, modified_at
		FROM dirty_tables
		ORDER BY table_name;`

	clearDirtyTable = `
		DELETE FROM dirty_tables
		WHERE table_name = ?;`

	insertConflict = `
		INSERT INTO conflicts (
			id,
			table_name,
			type,
			conflict_key,
			local_row_id,
			remote_row_id,
			local_snapshot,
			local_hlc,
			remote_value,
			remote_hlc,
			detected_at,
			resolved,
			resolution
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?);`

	getConflict = `
		SELECT
			id,
			table_name,
			type,
			conflict_key,
			local_row_id,
			remote_row_id,
			local_snapshot,
			local_hlc,
			remote_value,
			remote_hlc,
			detected_at,
			resolved,
			resolution,
			resolved_at
		FROM conflicts
		WHERE id = ?;`

	markConflictResolved = `
		UPDATE conflicts
		SET resolved = 1, resolved_at = ?
		WHERE id = ? AND resolved = 0;`

	upsertPendingColumn = `
		INSERT INTO pending_columns (table_name, column_name, first_seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT (table_name, column_name) DO NOTHING;`

	listPendingColumns = `
		SELECT table_name, column_name, first_seen_at
		FROM pending_columns
		ORDER BY table_name, column_name;`

	deletePendingColumn = `
		DELETE FROM pending_columns
		WHERE table_name = ? AND column_name = ?;`

	saveBackend = `
		INSERT INTO sync_backends (
			id,
			name,
			kind,
			config,
			remote_vault_id,
			wrapped_sync_key,
			wrap_salt,
			enabled,
			priority,
			last_push_hlc,
			last_pull_hlc,
			pending_vault_key_update
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name                     = excluded.name,
			kind                     = excluded.kind,
			config                   = excluded.config,
			remote_vault_id          = excluded.remote_vault_id,
			wrapped_sync_key         = excluded.wrapped_sync_key,
			wrap_salt                = excluded.wrap_salt,
			enabled                  = excluded.enabled,
			priority                 = excluded.priority,
			last_push_hlc            = excluded.last_push_hlc,
			last_pull_hlc            = excluded.last_pull_hlc,
			pending_vault_key_update = excluded.pending_vault_key_update;`

	backendColumns = `
		id,
		name,
		kind,
		config,
		remote_vault_id,
		wrapped_sync_key,
		wrap_salt,
		enabled,
		priority,
		last_push_hlc,
		last_pull_hlc,
		pending_vault_key_update`

	setBackendEnabled = `
		UPDATE sync_backends
		SET enabled = ?
		WHERE id = ?;`

	setBackendPendingKeyUpdate = `
		UPDATE sync_backends
		SET pending_vault_key_update = ?
		WHERE id = ?;`

	setBackendWrappedKey = `
		UPDATE sync_backends
		SET wrapped_sync_key = ?, wrap_salt = ?, pending_vault_key_update = 0
		WHERE id = ?;`

	advancePushWatermark = `
		UPDATE sync_backends
		SET last_push_hlc = ?
		WHERE id = ? AND last_push_hlc < ?;`

	advancePullWatermark = `
		UPDATE sync_backends
		SET last_pull_hlc = ?
		WHERE id = ? AND last_pull_hlc < ?;`

	minEnabledPushWatermark = `
		SELECT MIN(last_push_hlc)
		FROM sync_backends
		WHERE enabled = 1;`

	deleteBackend = `
		DELETE FROM sync_backends
		WHERE id = ?;`

	getVaultDEK = `
		SELECT dek
		FROM vault_keys
		WHERE id = 1;`

	saveVaultDEK = `
		INSERT INTO vault_keys (id, dek, created_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			dek = excluded.dek;`
)
