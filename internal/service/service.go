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

package service

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/wake-rsc/internal/models"
	"github.com/sapcc/wake-rsc/internal/rsc"
)

// Service wires the relational store, the blob store registry and the
// admission controller together into the operations the service frontend
// calls into (spec §4.4-§4.7, §4.10).
type Service struct {
	DB      *rsc.DB
	Stores  func(storeID string) (rsc.BlobStore, error)
	// ActiveStoreID and SmallStoreID are the blob_stores.id values that
	// ingest writes new blobs to: ActiveStoreID for ordinary content,
	// SmallStoreID (a "db-embedded" kind store) for parts whose content type
	// carries the "blob/small" marker (spec §4.4, §9 open question: the
	// marker string is observed behavior, not a documented contract).
	ActiveStoreID string
	SmallStoreID  string
	Admission     *rsc.Admission
	Load          *rsc.LoadEstimate
	TimeNow       func() time.Time
}

// New creates a Service with time.Now as its clock.
func New(db *rsc.DB, stores func(string) (rsc.BlobStore, error), activeStoreID, smallStoreID string, admission *rsc.Admission, load *rsc.LoadEstimate) *Service {
	return &Service{DB: db, Stores: stores, ActiveStoreID: activeStoreID, SmallStoreID: smallStoreID, Admission: admission, Load: load, TimeNow: time.Now}
}

func (s *Service) now() time.Time { return s.TimeNow() }

// history event columns. Never derived from client input, so building SQL
// by formatting these constants in is safe.
const (
	eventHit       = "hits"
	eventMiss      = "misses"
	eventEviction  = "evictions"
	eventShed      = "shed"
	eventDenied    = "denied"
	eventConflict  = "conflict"
)

func (s *Service) recordEvent(hash rsc.Fingerprint, column string) {
	now := s.now()
	_, err := s.DB.Exec(`INSERT INTO job_history (hash, created_at, updated_at) VALUES ($1, $2, $2) ON CONFLICT (hash) DO NOTHING`, hash[:], now)
	if err == nil {
		_, err = s.DB.Exec(`UPDATE job_history SET `+column+` = `+column+` + 1, updated_at = $2 WHERE hash = $1`, hash[:], now)
	}
	if err != nil {
		logg.Error("could not record %s for job history %x: %s", column, hash[:], err.Error())
	}
}

// CheckAdmission runs the admission controller (spec §4.7) and records the
// matching JobHistory counter for whatever it decided.
func (s *Service) CheckAdmission(runtime rsc.Duration, hash rsc.Fingerprint) error {
	decision, err := s.Admission.Check(runtime, hash)
	switch decision {
	case rsc.RejectedRuntimeTooShort:
		s.recordEvent(hash, eventDenied)
	case rsc.RejectedShed:
		s.recordEvent(hash, eventShed)
	case rsc.RejectedConflict:
		s.recordEvent(hash, eventConflict)
	// rsc.CheckFailed (a transient error, not an actual conflict) and
	// rsc.Accepted intentionally record nothing.
	}
	return err
}

// IngestBlob implements C4 for a single multipart part: stream content
// through the chosen store, then upsert Blob metadata keyed by
// (store_id, key) per spec §4.3.
func (s *Service) IngestBlob(storeID string, content sourceReader) (blobID string, err error) {
	store, err := s.Stores(storeID)
	if err != nil {
		return "", err
	}

	key, sizeBytes, err := store.Put(content)
	if err != nil {
		return "", err
	}

	now := s.now()
	newID := uuid.NewString()
	blobID, err = s.DB.SelectStr(`
		INSERT INTO blobs (id, key, store_id, size_bytes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (store_id, key) DO UPDATE SET updated_at = $5
			RETURNING id
	`, newID, key, storeID, sizeBytes, now)
	return blobID, err
}

// sourceReader is the minimal io.Reader alias IngestBlob needs; kept as a
// named type so callers don't need to import io just to call this method.
type sourceReader = interface {
	Read(p []byte) (n int, err error)
}

// InsertJob implements C5: compute the fingerprint, then transactionally
// insert the Job row and its bulk output rows.
func (s *Service) InsertJob(p JobInsertPayload) (jobID string, err error) {
	if s.Load != nil {
		s.Load.Increment()
		defer s.Load.Decrement()
	}
	hash := rsc.ComputeFingerprint(p.fingerprintInput())

	tx, err := s.DB.Begin()
	if err != nil {
		return "", err
	}
	defer rsc.RollbackUnlessCommitted(tx)

	now := s.now()
	job := models.Job{
		ID:           uuid.NewString(),
		Hash:         hash[:],
		Cmd:          p.Cmd,
		Env:          p.Env,
		Cwd:          p.Cwd,
		Stdin:        p.Stdin,
		IsAtty:       p.IsAtty,
		HiddenInfo:   p.HiddenInfo,
		StdoutBlobID: nonEmptyPtr(p.StdoutBlobID),
		StderrBlobID: nonEmptyPtr(p.StderrBlobID),
		Status:       models.JobStatus(p.Status),
		RuntimeMs:    int64(p.Runtime * 1000),
		CputimeMs:    int64(p.Cputime * 1000),
		MemoryBytes:  int64(p.Memory), //nolint:gosec // resource accounting, not security-relevant
		IBytes:       int64(p.IBytes), //nolint:gosec
		OBytes:       int64(p.OBytes), //nolint:gosec
		Label:        p.Label,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = tx.Insert(&job)
	if err != nil {
		if isUniqueViolation(err) {
			return "", rsc.ErrConflict
		}
		return "", err
	}

	err = insertOutputFiles(tx, job.ID, p.OutputFiles)
	if err != nil {
		return "", err
	}
	err = insertOutputSymlinks(tx, job.ID, p.OutputSymlinks)
	if err != nil {
		return "", err
	}
	err = insertOutputDirs(tx, job.ID, p.OutputDirs)
	if err != nil {
		return "", err
	}

	return job.ID, tx.Commit()
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// insertOutputFiles, insertOutputSymlinks and insertOutputDirs each insert
// their rows in chunks bounded by rsc.ChunkSize (spec §4.3, §4.5), rather
// than relying on the driver to hide Postgres's parameter-count ceiling.
func insertOutputFiles(tx gorpExecutor, jobID string, files []OutputFilePayload) error {
	const columnsPerRow = 4
	chunkSize := rsc.ChunkSize(columnsPerRow)
	for start := 0; start < len(files); start += chunkSize {
		end := min(start+chunkSize, len(files))
		query := "INSERT INTO output_files (job_id, path, mode, blob_id) VALUES "
		args := make([]any, 0, (end-start)*columnsPerRow)
		for i, f := range files[start:end] {
			if i > 0 {
				query += ", "
			}
			base := i * columnsPerRow
			query += placeholders(base+1, columnsPerRow)
			args = append(args, jobID, f.Path, f.Mode, f.BlobID)
		}
		_, err := tx.Exec(query, args...)
		if err != nil {
			return err
		}
	}
	return nil
}

func insertOutputSymlinks(tx gorpExecutor, jobID string, links []OutputSymlinkPayload) error {
	const columnsPerRow = 3
	chunkSize := rsc.ChunkSize(columnsPerRow)
	for start := 0; start < len(links); start += chunkSize {
		end := min(start+chunkSize, len(links))
		query := "INSERT INTO output_symlinks (job_id, path, link) VALUES "
		args := make([]any, 0, (end-start)*columnsPerRow)
		for i, l := range links[start:end] {
			if i > 0 {
				query += ", "
			}
			base := i * columnsPerRow
			query += placeholders(base+1, columnsPerRow)
			args = append(args, jobID, l.Path, l.Link)
		}
		_, err := tx.Exec(query, args...)
		if err != nil {
			return err
		}
	}
	return nil
}

func insertOutputDirs(tx gorpExecutor, jobID string, dirs []OutputDirPayload) error {
	const columnsPerRow = 4
	chunkSize := rsc.ChunkSize(columnsPerRow)
	for start := 0; start < len(dirs); start += chunkSize {
		end := min(start+chunkSize, len(dirs))
		query := "INSERT INTO output_dirs (job_id, path, mode, hidden) VALUES "
		args := make([]any, 0, (end-start)*columnsPerRow)
		for i, d := range dirs[start:end] {
			if i > 0 {
				query += ", "
			}
			base := i * columnsPerRow
			query += placeholders(base+1, columnsPerRow)
			args = append(args, jobID, d.Path, d.Mode, d.Hidden)
		}
		_, err := tx.Exec(query, args...)
		if err != nil {
			return err
		}
	}
	return nil
}

// gorpExecutor is the subset of gorp.SqlExecutor that the bulk-insert
// helpers need.
type gorpExecutor interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func placeholders(startAt, count int) string {
	out := "("
	for i := 0; i < count; i++ {
		if i > 0 {
			out += ", "
		}
		out += "$" + strconv.Itoa(startAt+i)
	}
	return out + ")"
}
