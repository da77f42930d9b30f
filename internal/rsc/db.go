/*******************************************************************************
*
* Copyright 2024 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package rsc

import (
	"database/sql"
	"net/url"

	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/logg"
	gorp "gopkg.in/gorp.v2"

	"github.com/sapcc/wake-rsc/internal/models"
)

var sqlMigrations = map[string]string{
	"001_initial.up.sql": `
		CREATE TABLE blob_stores (
			id         UUID        NOT NULL PRIMARY KEY,
			kind       TEXT        NOT NULL,
			config     TEXT        NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE blobs (
			id         UUID        NOT NULL PRIMARY KEY,
			key        TEXT        NOT NULL,
			store_id   UUID        NOT NULL REFERENCES blob_stores ON DELETE RESTRICT,
			size_bytes BIGINT      NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (store_id, key)
		);

		CREATE TABLE jobs (
			id              UUID        NOT NULL PRIMARY KEY,
			hash            BYTEA       NOT NULL UNIQUE,
			cmd             BYTEA       NOT NULL,
			env             BYTEA       NOT NULL,
			cwd             TEXT        NOT NULL,
			stdin           TEXT        NOT NULL,
			is_atty         BOOLEAN     NOT NULL DEFAULT FALSE,
			hidden_info     BYTEA       NOT NULL DEFAULT '',
			stdout_blob_id  UUID                 REFERENCES blobs ON DELETE RESTRICT,
			stderr_blob_id  UUID                 REFERENCES blobs ON DELETE RESTRICT,
			status          INT         NOT NULL,
			runtime_ms      BIGINT      NOT NULL,
			cputime_ms      BIGINT      NOT NULL,
			memory_bytes    BIGINT      NOT NULL,
			i_bytes         BIGINT      NOT NULL,
			o_bytes         BIGINT      NOT NULL,
			label           TEXT        NOT NULL DEFAULT '',
			size_bytes      BIGINT      NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE output_files (
			job_id   UUID   NOT NULL REFERENCES jobs ON DELETE CASCADE,
			path     TEXT   NOT NULL,
			mode     INT    NOT NULL,
			blob_id  UUID   NOT NULL REFERENCES blobs ON DELETE RESTRICT,
			PRIMARY KEY (job_id, path)
		);

		CREATE TABLE output_symlinks (
			job_id UUID NOT NULL REFERENCES jobs ON DELETE CASCADE,
			path   TEXT NOT NULL,
			link   TEXT NOT NULL,
			PRIMARY KEY (job_id, path)
		);

		CREATE TABLE output_dirs (
			job_id UUID    NOT NULL REFERENCES jobs ON DELETE CASCADE,
			path   TEXT    NOT NULL,
			mode   INT     NOT NULL,
			hidden BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (job_id, path)
		);

		CREATE TABLE job_uses (
			job_id     UUID        NOT NULL REFERENCES jobs ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX job_uses_job_id_idx ON job_uses (job_id);

		CREATE TABLE job_history (
			hash       BYTEA       NOT NULL PRIMARY KEY,
			hits       BIGINT      NOT NULL DEFAULT 0,
			misses     BIGINT      NOT NULL DEFAULT 0,
			evictions  BIGINT      NOT NULL DEFAULT 0,
			shed       BIGINT      NOT NULL DEFAULT 0,
			denied     BIGINT      NOT NULL DEFAULT 0,
			conflict   BIGINT      NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE api_keys (
			id          UUID        NOT NULL PRIMARY KEY,
			key         TEXT        NOT NULL UNIQUE,
			description TEXT        NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`,
	"001_initial.down.sql": `
		DROP TABLE api_keys;
		DROP TABLE job_history;
		DROP TABLE job_uses;
		DROP TABLE output_dirs;
		DROP TABLE output_symlinks;
		DROP TABLE output_files;
		DROP TABLE jobs;
		DROP TABLE blobs;
		DROP TABLE blob_stores;
	`,
}

// DB adds convenience functions on top of gorp.DbMap, exactly as the table
// registration and transaction helpers below mirror the reference
// bootstrap's conventions: one shared connection pool, hand-registered
// tables, and explicit rollback-on-defer for every multi-statement write.
type DB struct {
	gorp.DbMap
}

// InitDB connects to the configured Postgres database, applies pending
// schema migrations, and registers the data model's tables with gorp.
func InitDB(dbURL url.URL) (*DB, error) {
	sqlDB, err := easypg.Connect(easypg.Configuration{
		PostgresURL: &dbURL,
		Migrations:  sqlMigrations,
	})
	if err != nil {
		return nil, err
	}
	return NewTestDB(sqlDB), nil
}

// SQLMigrations returns the schema migrations applied by InitDB, for use
// with easypg.ConnectForTest in package test.
func SQLMigrations() map[string]string {
	return sqlMigrations
}

// NewTestDB wraps an already-connected and already-migrated *sql.DB (as
// produced by easypg.ConnectForTest) into a *DB with the data model's
// tables registered, without re-running migrations.
func NewTestDB(sqlDB *sql.DB) *DB {
	result := &DB{DbMap: gorp.DbMap{Db: sqlDB, Dialect: gorp.PostgresDialect{}}}
	initModels(&result.DbMap)
	return result
}

// GetBlobStore loads a blob_stores row by ID, for resolving a job's or
// blob's storeID into driver kind/config at startup (spec §4.2).
func (db *DB) GetBlobStore(storeID string) (*models.BlobStore, error) {
	var row models.BlobStore
	err := db.SelectOne(&row, `SELECT * FROM blob_stores WHERE id = $1`, storeID)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// RollbackUnlessCommitted calls Rollback() on a transaction if it hasn't
// been committed or rolled back yet. Use this with the defer keyword to make
// sure that a transaction is automatically rolled back when a function
// returns early due to an error.
func RollbackUnlessCommitted(tx *gorp.Transaction) {
	err := tx.Rollback()
	switch err {
	case nil:
		logg.Info("implicit rollback done")
		return
	case sql.ErrTxDone:
		return
	default:
		logg.Error("implicit rollback failed: %s", err.Error())
	}
}

// ForeachRow calls dbi.Query() with the given query and args, then executes
// the given action once for every row in the result set, taking care of
// cleanup and error handling either way.
func ForeachRow(dbi gorp.SqlExecutor, query string, args []interface{}, action func(*sql.Rows) error) error {
	rows, err := dbi.Query(query, args...)
	if err != nil {
		return err
	}
	for rows.Next() {
		err = action(rows)
		if err != nil {
			rows.Close()
			return err
		}
	}
	err = rows.Err()
	if err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

func initModels(db *gorp.DbMap) {
	db.AddTableWithName(models.BlobStore{}, "blob_stores").SetKeys(false, "id")
	db.AddTableWithName(models.Blob{}, "blobs").SetKeys(false, "id")
	db.AddTableWithName(models.Job{}, "jobs").SetKeys(false, "id")
	db.AddTableWithName(models.OutputFile{}, "output_files").SetKeys(false, "job_id", "path")
	db.AddTableWithName(models.OutputSymlink{}, "output_symlinks").SetKeys(false, "job_id", "path")
	db.AddTableWithName(models.OutputDir{}, "output_dirs").SetKeys(false, "job_id", "path")
	db.AddTableWithName(models.JobUse{}, "job_uses").SetKeys(false, "job_id", "created_at")
	db.AddTableWithName(models.JobHistory{}, "job_history").SetKeys(false, "hash")
	db.AddTableWithName(models.ApiKey{}, "api_keys").SetKeys(false, "id")
}

// maxPlaceholdersPerStatement bounds the width of the batch-insert helper
// below. Postgres caps a prepared statement at 65535 parameters; spec §4.3
// gives the literal ceiling of 65500 to leave a small margin.
const maxPlaceholdersPerStatement = 65500

// ChunkSize returns how many rows of the given column count can be combined
// into a single multi-row INSERT without exceeding maxPlaceholdersPerStatement.
func ChunkSize(columnsPerRow int) int {
	if columnsPerRow <= 0 {
		return 1
	}
	n := maxPlaceholdersPerStatement / columnsPerRow
	if n < 1 {
		return 1
	}
	return n
}
