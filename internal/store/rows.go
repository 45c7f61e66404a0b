// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Authors

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/keyfold/keyfold/internal/logger"
	"github.com/keyfold/keyfold/models"
)

// metaColumns are the replication bookkeeping columns every replicated table
// carries next to its data columns.
var metaColumns = map[string]bool{
	"row_hlc":     true,
	"column_hlcs": true,
	"tombstone":   true,
}

// rowRepository is the SQLite-backed implementation of [RowRepository].
// It works generically against the registered replicated tables, discovering
// data columns via PRAGMA table_info so that schema migrations are picked up
// without code changes.
type rowRepository struct {
	db     *DB
	tables map[string]SyncTable
	order  []SyncTable
	logger *logger.Logger

	mu       sync.RWMutex
	colCache map[string]map[string]bool
}

// NewRowRepository constructs a [RowRepository] over the given replicated
// tables. Table and primary-key names come from trusted engine configuration,
// never from the wire; remote table names are checked against this registry
// before any SQL is built from them.
func NewRowRepository(db *DB, tables []SyncTable, log *logger.Logger) RowRepository {
	byName := make(map[string]SyncTable, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	return &rowRepository{
		db:       db,
		tables:   byName,
		order:    tables,
		logger:   log,
		colCache: make(map[string]map[string]bool),
	}
}

func (r *rowRepository) Tables() []SyncTable {
	out := make([]SyncTable, len(r.order))
	copy(out, r.order)
	return out
}

func (r *rowRepository) HasTable(ctx context.Context, table string) (bool, error) {
	_, ok := r.tables[table]
	return ok, nil
}

func (r *rowRepository) HasColumn(ctx context.Context, table, column string) (bool, error) {
	if _, ok := r.tables[table]; !ok {
		return false, nil
	}
	cols, err := r.columns(ctx, table)
	if err != nil {
		return false, err
	}
	return cols[column], nil
}

// InvalidateSchemaCache drops the cached column sets. The skew reconciliation
// pass calls this after a migration so newly added columns become visible.
func (r *rowRepository) InvalidateSchemaCache() {
	r.mu.Lock()
	r.colCache = make(map[string]map[string]bool)
	r.mu.Unlock()
}

func (r *rowRepository) Meta(ctx context.Context, q Querier, table, rowID string) (models.RowMeta, bool, error) {
	t, err := r.table(table)
	if err != nil {
		return models.RowMeta{}, false, err
	}

	query := fmt.Sprintf(
		`SELECT row_hlc, column_hlcs, tombstone FROM %s WHERE %s = ?;`,
		quoteIdent(t.Name), quoteIdent(t.PKColumn),
	)

	var (
		rowHLCRaw string
		stampsRaw string
		tombstone bool
	)
	err = q.QueryRowContext(ctx, query, rowID).Scan(&rowHLCRaw, &stampsRaw, &tombstone)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RowMeta{}, false, nil
	}
	if err != nil {
		return models.RowMeta{}, false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	rowHLC, err := models.ParseHLC(rowHLCRaw)
	if err != nil {
		return models.RowMeta{}, false, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	stamps, err := models.DecodeColumnHLCs(stampsRaw)
	if err != nil {
		return models.RowMeta{}, false, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return models.RowMeta{RowHLC: rowHLC, ColumnHLCs: stamps, Tombstone: tombstone}, true, nil
}

func (r *rowRepository) ColumnValue(ctx context.Context, q Querier, table, rowID, column string) (*string, error) {
	t, err := r.table(table)
	if err != nil {
		return nil, err
	}
	if err = r.checkColumn(ctx, table, column); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = ?;`,
		quoteIdent(column), quoteIdent(t.Name), quoteIdent(t.PKColumn),
	)

	var value sql.NullString
	err = q.QueryRowContext(ctx, query, rowID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	if !value.Valid {
		return nil, nil
	}
	v := value.String
	return &v, nil
}

func (r *rowRepository) InsertRow(ctx context.Context, q Querier, table, rowID string, values map[string]*string, stamps map[string]models.HLC, rowHLC models.HLC) error {
	log := logger.FromContext(ctx)

	t, err := r.table(table)
	if err != nil {
		return err
	}
	for column := range values {
		if err = r.checkColumn(ctx, table, column); err != nil {
			return err
		}
	}

	stampsRaw, err := models.EncodeColumnHLCs(stamps)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	columns := []string{quoteIdent(t.PKColumn), "row_hlc", "column_hlcs", "tombstone"}
	args := []any{rowID, rowHLC.String(), stampsRaw, 0}
	for column, value := range values {
		columns = append(columns, quoteIdent(column))
		args = append(args, nullable(value))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s);`,
		quoteIdent(t.Name), strings.Join(columns, ", "), placeholders,
	)

	if _, err = q.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "rowRepository.InsertRow").
			Str("table", table).
			Str("row_id", rowID).
			Msg("failed to insert replicated row")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *rowRepository) ApplyColumn(ctx context.Context, q Querier, table, rowID, column string, value *string, stamp models.HLC) error {
	if column == models.TombstoneColumn {
		deleted := value != nil && *value == models.TombstoneSet
		return r.SetTombstone(ctx, q, table, rowID, deleted, stamp)
	}

	t, err := r.table(table)
	if err != nil {
		return err
	}
	if err = r.checkColumn(ctx, table, column); err != nil {
		return err
	}

	if err = r.ensureRow(ctx, q, t, rowID); err != nil {
		return err
	}

	meta, _, err := r.Meta(ctx, q, table, rowID)
	if err != nil {
		return err
	}
	meta.ColumnHLCs[column] = stamp
	stampsRaw, err := models.EncodeColumnHLCs(meta.ColumnHLCs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET %s = ?, row_hlc = ?, column_hlcs = ? WHERE %s = ?;`,
		quoteIdent(t.Name), quoteIdent(column), quoteIdent(t.PKColumn),
	)

	rowHLC := models.MaxHLC(meta.RowHLC, stamp)
	if _, err = q.ExecContext(ctx, query, nullable(value), rowHLC.String(), stampsRaw, rowID); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "rowRepository.ApplyColumn").
			Str("table", table).
			Str("row_id", rowID).
			Str("column", column).
			Msg("failed to apply column value")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

func (r *rowRepository) SetTombstone(ctx context.Context, q Querier, table, rowID string, deleted bool, stamp models.HLC) error {
	t, err := r.table(table)
	if err != nil {
		return err
	}

	if err = r.ensureRow(ctx, q, t, rowID); err != nil {
		return err
	}

	meta, _, err := r.Meta(ctx, q, table, rowID)
	if err != nil {
		return err
	}
	meta.ColumnHLCs[models.TombstoneColumn] = stamp
	stampsRaw, err := models.EncodeColumnHLCs(meta.ColumnHLCs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET tombstone = ?, row_hlc = ?, column_hlcs = ? WHERE %s = ?;`,
		quoteIdent(t.Name), quoteIdent(t.PKColumn),
	)

	rowHLC := models.MaxHLC(meta.RowHLC, stamp)
	if _, err = q.ExecContext(ctx, query, deleted, rowHLC.String(), stampsRaw, rowID); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Snapshot loads the full row and serializes it to JSON, column names as
// keys. Used for the local-side snapshot in conflict records.
func (r *rowRepository) Snapshot(ctx context.Context, q Querier, table, rowID string) (string, error) {
	t, err := r.table(table)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = ?;`, quoteIdent(t.Name), quoteIdent(t.PKColumn))

	rows, err := q.QueryContext(ctx, query, rowID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		return "", ErrRowNotFound
	}

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err = rows.Scan(ptrs...); err != nil {
		return "", fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	snapshot := make(map[string]any, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			snapshot[col] = string(b)
			continue
		}
		snapshot[col] = values[i]
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode row snapshot: %w", err)
	}

	return string(raw), nil
}

func (r *rowRepository) ReapTombstones(ctx context.Context, q Querier, table string, cutoff models.HLC) (int64, error) {
	t, err := r.table(table)
	if err != nil {
		return 0, err
	}

	// A tombstoned row survives while any change record of the row is still
	// pending upload: an in-flight push may not have acknowledged it yet.
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE tombstone = 1
		  AND row_hlc < ?
		  AND NOT EXISTS (
			SELECT 1 FROM change_log c
			WHERE c.table_name = ? AND c.row_id = %s.%s AND c.upload_state = 'pending'
		  );`,
		quoteIdent(t.Name), quoteIdent(t.Name), quoteIdent(t.PKColumn),
	)

	res, err := q.ExecContext(ctx, query, cutoff.String(), t.Name)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return affected, nil
}

func (r *rowRepository) table(name string) (SyncTable, error) {
	t, ok := r.tables[name]
	if !ok {
		return SyncTable{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return t, nil
}

func (r *rowRepository) checkColumn(ctx context.Context, table, column string) error {
	cols, err := r.columns(ctx, table)
	if err != nil {
		return err
	}
	if !cols[column] {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, column)
	}
	return nil
}

// columns returns the data+meta column set of a table, cached until
// InvalidateSchemaCache.
func (r *rowRepository) columns(ctx context.Context, table string) (map[string]bool, error) {
	r.mu.RLock()
	cached, ok := r.colCache[table]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err = rows.Scan(&cid, &name, &ctype, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		cols[name] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	r.mu.Lock()
	r.colCache[table] = cols
	r.mu.Unlock()

	return cols, nil
}

// ensureRow creates the bare row if it does not exist yet, so a pulled
// change for a remotely created row has something to land on.
func (r *rowRepository) ensureRow(ctx context.Context, q Querier, t SyncTable, rowID string) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, row_hlc, column_hlcs, tombstone) VALUES (?, '', '{}', 0) ON CONFLICT (%s) DO NOTHING;`,
		quoteIdent(t.Name), quoteIdent(t.PKColumn), quoteIdent(t.PKColumn),
	)
	if _, err := q.ExecContext(ctx, query, rowID); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func nullable(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

// quoteIdent quotes a SQL identifier. Identifiers originate from the trusted
// table registry or from PRAGMA-validated column names.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
