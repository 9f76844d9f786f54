// Package index implements the per-generation index database: a small
// SQLite file listing every backed-up filesystem entry and, for
// regular files, the ordered list of Data chunk ids that make up its
// content. One index database is built per backup generation, chunked
// and uploaded as a sequence of IndexPart chunks, and reassembled from
// those same chunks on restore.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"obnam-go/internal/index/migrations"
)

// DB wraps a per-generation index database. Unlike a long-lived
// per-host database reused across many backups, an index DB is
// created fresh for each generation being built, and a scratch copy
// is reconstructed fresh for each generation being restored — so DB
// carries no generated query struct, just plain hand-written methods
// against *sql.DB.
type DB struct {
	conn *sql.DB
	path string
}

// Create opens a fresh index database at path (or ":memory:") and
// applies the schema migrations to it. An existing file at path is
// opened as is, not replaced; a generation's index database is
// created exactly once per backup run.
func Create(path string) (*DB, error) {
	conn, err := openConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("preparing index schema: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.SetMetadata("schema_version_major", fmt.Sprint(CurrentSchemaVersion.Major)); err != nil {
		conn.Close()
		return nil, err
	}
	if err := db.SetMetadata("schema_version_minor", fmt.Sprint(CurrentSchemaVersion.Minor)); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Open opens an already-populated index database (e.g. one just
// reassembled from downloaded IndexPart chunks) without running
// migrations, so a restore of an older schema doesn't get silently
// upgraded out from under it.
func Open(path string) (*DB, error) {
	conn, err := openConnection(path)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, path: path}, nil
}

func openConnection(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return conn, nil
}

// Path returns the on-disk location of the database file.
func (db *DB) Path() string { return db.path }

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// SetMetadata upserts a metadata key/value pair (schema_version_major,
// schema_version_minor, checksum_kind, and any future extensible
// entries the metadata table allows).
func (db *DB) SetMetadata(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting metadata %q: %w", key, err)
	}
	return nil
}

// Metadata reads a single metadata value. The zero value and false are
// returned if the key is absent.
func (db *DB) Metadata(key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading metadata %q: %w", key, err)
	}
	return value, true, nil
}

// SchemaVersion reads the schema_version_major/minor metadata entries
// written by Create.
func (db *DB) SchemaVersion() (SchemaVersion, error) {
	majorStr, ok, err := db.Metadata("schema_version_major")
	if err != nil {
		return SchemaVersion{}, err
	}
	if !ok {
		return SchemaVersion{}, fmt.Errorf("index database has no schema_version_major metadata entry")
	}
	minorStr, ok, err := db.Metadata("schema_version_minor")
	if err != nil {
		return SchemaVersion{}, err
	}
	if !ok {
		return SchemaVersion{}, fmt.Errorf("index database has no schema_version_minor metadata entry")
	}

	var v SchemaVersion
	if _, err := fmt.Sscanf(majorStr, "%d", &v.Major); err != nil {
		return SchemaVersion{}, fmt.Errorf("parsing schema_version_major %q: %w", majorStr, err)
	}
	if _, err := fmt.Sscanf(minorStr, "%d", &v.Minor); err != nil {
		return SchemaVersion{}, fmt.Errorf("parsing schema_version_minor %q: %w", minorStr, err)
	}
	return v, nil
}

// InsertFileEntry records one filesystem entry and its chunk-id
// sequence in a single transaction, so a crash mid-write can never
// leave a file_entries row with a partial file_chunks list.
func (db *DB) InsertFileEntry(ctx context.Context, e FileEntry) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO file_entries
			(path, kind, mode, uid, gid, dev, ino, nlink, size, mtime_sec, mtime_nsec, symlink_target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Path, string(e.Kind), e.Mode, e.UID, e.GID, e.Dev, e.Ino, e.Nlink, e.Size,
		e.MTimeSec, e.MTimeNsec, nullableString(e.SymlinkTarget),
	)
	if err != nil {
		return fmt.Errorf("inserting file entry %s: %w", e.Path, err)
	}

	fileID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted file entry id: %w", err)
	}

	for seq, chunkID := range e.ChunkIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file_chunks (file_id, seq, chunk_id) VALUES (?, ?, ?)`,
			fileID, seq, chunkID,
		); err != nil {
			return fmt.Errorf("inserting chunk reference for %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing file entry %s: %w", e.Path, err)
	}
	return nil
}

// FileEntryByPath returns the entry recorded for path, or nil if it
// isn't present. Used by the Generation Builder's incremental
// optimisation to look up the previous generation's row.
func (db *DB) FileEntryByPath(ctx context.Context, path string) (*FileEntry, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, path, kind, mode, uid, gid, dev, ino, nlink, size, mtime_sec, mtime_nsec, symlink_target
		FROM file_entries WHERE path = ?`, path)

	var id int64
	var e FileEntry
	var kind string
	var symlink sql.NullString
	err := row.Scan(&id, &e.Path, &kind, &e.Mode, &e.UID, &e.GID, &e.Dev, &e.Ino, &e.Nlink, &e.Size,
		&e.MTimeSec, &e.MTimeNsec, &symlink)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding file entry %s: %w", path, err)
	}
	e.Kind = Kind(kind)
	e.SymlinkTarget = symlink.String

	chunkIDs, err := db.chunkIDsForFile(ctx, id)
	if err != nil {
		return nil, err
	}
	e.ChunkIDs = chunkIDs
	return &e, nil
}

func (db *DB) chunkIDsForFile(ctx context.Context, fileID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT chunk_id FROM file_chunks WHERE file_id = ? ORDER BY seq ASC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for file id %d: %w", fileID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AllFileEntries returns every file entry in path order, for the
// Restorer to walk directories-then-files-then-symlinks and for
// `list-files` to print.
func (db *DB) AllFileEntries(ctx context.Context) ([]FileEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, path, kind, mode, uid, gid, dev, ino, nlink, size, mtime_sec, mtime_nsec, symlink_target
		FROM file_entries ORDER BY path ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing file entries: %w", err)
	}
	defer rows.Close()

	var entries []FileEntry
	var ids []int64
	for rows.Next() {
		var id int64
		var e FileEntry
		var kind string
		var symlink sql.NullString
		if err := rows.Scan(&id, &e.Path, &kind, &e.Mode, &e.UID, &e.GID, &e.Dev, &e.Ino, &e.Nlink, &e.Size,
			&e.MTimeSec, &e.MTimeNsec, &symlink); err != nil {
			return nil, fmt.Errorf("scanning file entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.SymlinkTarget = symlink.String
		entries = append(entries, e)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing file entries: %w", err)
	}

	for i, id := range ids {
		chunkIDs, err := db.chunkIDsForFile(ctx, id)
		if err != nil {
			return nil, err
		}
		entries[i].ChunkIDs = chunkIDs
	}
	return entries, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
