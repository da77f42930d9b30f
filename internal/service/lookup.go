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

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/wake-rsc/internal/models"
	"github.com/sapcc/wake-rsc/internal/rsc"
)

// LookupJob implements C6: resolve a fingerprint to its cached outputs, or
// report NoMatch. History accounting (hit/miss) happens after the read is
// complete and never changes the result already computed (spec §4.6: "Post-
// response, asynchronously...Failures in accounting MUST NOT affect the
// client response").
func (s *Service) LookupJob(p LookupPayload) (*MatchResult, error) {
	hash := rsc.ComputeFingerprint(p.FingerprintInput())

	result, err := s.lookupTx(hash)
	switch {
	case errors.Is(err, rsc.ErrNoMatch):
		go s.recordEvent(hash, eventMiss)
		return nil, rsc.ErrNoMatch
	case err != nil:
		return nil, err
	default:
		go func() {
			s.recordJobUse(hash)
			s.recordEvent(hash, eventHit)
		}()
		return result, nil
	}
}

func (s *Service) lookupTx(hash rsc.Fingerprint) (*MatchResult, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer rsc.RollbackUnlessCommitted(tx)

	var job models.Job
	err = tx.SelectOne(&job, `SELECT * FROM jobs WHERE hash = $1`, hash[:])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rsc.ErrNoMatch
	}
	if err != nil {
		return nil, err
	}

	var outputFiles []models.OutputFile
	_, err = tx.Select(&outputFiles, `SELECT * FROM output_files WHERE job_id = $1`, job.ID)
	if err != nil {
		return nil, err
	}
	var outputSymlinks []models.OutputSymlink
	_, err = tx.Select(&outputSymlinks, `SELECT * FROM output_symlinks WHERE job_id = $1`, job.ID)
	if err != nil {
		return nil, err
	}
	var outputDirs []models.OutputDir
	_, err = tx.Select(&outputDirs, `SELECT * FROM output_dirs WHERE job_id = $1`, job.ID)
	if err != nil {
		return nil, err
	}

	blobIDs := make([]string, 0, len(outputFiles)+2)
	for _, f := range outputFiles {
		blobIDs = append(blobIDs, f.BlobID)
	}
	if job.StdoutBlobID != nil {
		blobIDs = append(blobIDs, *job.StdoutBlobID)
	}
	if job.StderrBlobID != nil {
		blobIDs = append(blobIDs, *job.StderrBlobID)
	}

	blobsByID, err := s.selectBlobsChunked(tx, blobIDs)
	if err != nil {
		return nil, err
	}

	// Edge policy (spec §4.6): if any referenced blob cannot be resolved, the
	// whole lookup degrades to NoMatch -- the job has been corrupted by
	// partial eviction and is no longer serveable.
	resolve := func(blobID *string) (BlobRef, bool) {
		if blobID == nil {
			return BlobRef{}, true
		}
		blob, ok := blobsByID[*blobID]
		if !ok {
			return BlobRef{}, false
		}
		store, err := s.Stores(blob.StoreID)
		if err != nil {
			return BlobRef{}, false
		}
		url, err := store.DownloadURL(blob.Key)
		if err != nil {
			return BlobRef{}, false
		}
		return BlobRef{ID: blob.ID, URL: url}, true
	}

	stdoutBlob, ok := resolve(job.StdoutBlobID)
	if !ok {
		logg.Info("job %s (hash %x): stdout blob unresolvable, degrading to NoMatch", job.ID, job.Hash)
		return nil, rsc.ErrNoMatch
	}
	stderrBlob, ok := resolve(job.StderrBlobID)
	if !ok {
		logg.Info("job %s (hash %x): stderr blob unresolvable, degrading to NoMatch", job.ID, job.Hash)
		return nil, rsc.ErrNoMatch
	}

	matchFiles := make([]MatchOutputFile, len(outputFiles))
	for i, f := range outputFiles {
		blobID := f.BlobID
		ref, ok := resolve(&blobID)
		if !ok {
			logg.Info("job %s (hash %x): output file %q blob unresolvable, degrading to NoMatch", job.ID, job.Hash, f.Path)
			return nil, rsc.ErrNoMatch
		}
		matchFiles[i] = MatchOutputFile{Path: f.Path, Mode: f.Mode, Blob: ref}
	}

	symlinks := make([]OutputSymlinkPayload, len(outputSymlinks))
	for i, l := range outputSymlinks {
		symlinks[i] = OutputSymlinkPayload{Path: l.Path, Link: l.Link}
	}
	dirs := make([]OutputDirPayload, len(outputDirs))
	for i, d := range outputDirs {
		dirs[i] = OutputDirPayload{Path: d.Path, Mode: d.Mode, Hidden: d.Hidden}
	}

	result := &MatchResult{
		OutputSymlinks: symlinks,
		OutputDirs:     dirs,
		OutputFiles:    matchFiles,
		StdoutBlob:     stdoutBlob,
		StderrBlob:     stderrBlob,
		Status:         int(job.Status),
		Runtime:        float64(job.RuntimeMs) / 1000,
		Cputime:        float64(job.CputimeMs) / 1000,
		Memory:         uint64(job.MemoryBytes), //nolint:gosec // resource accounting, not security-relevant
		IBytes:         uint64(job.IBytes),      //nolint:gosec
		OBytes:         uint64(job.OBytes),      //nolint:gosec
	}

	return result, tx.Commit()
}

// selectBlobsChunked batches the Blob lookup to the driver parameter
// ceiling (spec §4.3, §4.6), rather than issuing one IN-clause with an
// unbounded number of placeholders.
func (s *Service) selectBlobsChunked(tx gorpSelector, ids []string) (map[string]models.Blob, error) {
	result := make(map[string]models.Blob, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	const columnsPerRow = 1
	chunkSize := rsc.ChunkSize(columnsPerRow)
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	for start := 0; start < len(unique); start += chunkSize {
		end := min(start+chunkSize, len(unique))
		chunk := unique[start:end]
		query := "SELECT * FROM blobs WHERE id IN " + placeholders(1, len(chunk))
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		var blobs []models.Blob
		_, err := tx.Select(&blobs, query, args...)
		if err != nil {
			return nil, err
		}
		for _, b := range blobs {
			result[b.ID] = b
		}
	}
	return result, nil
}

type gorpSelector interface {
	Select(holder any, query string, args ...any) ([]any, error)
}

func (s *Service) recordJobUse(hash rsc.Fingerprint) {
	var jobID string
	err := s.DB.SelectOne(&jobID, `SELECT id FROM jobs WHERE hash = $1`, hash[:])
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logg.Error("could not record job use for hash %x: %s", hash[:], err.Error())
		}
		return
	}
	_, err = s.DB.Exec(`INSERT INTO job_uses (job_id, created_at) VALUES ($1, $2)`, jobID, s.now())
	if err != nil {
		logg.Error("could not record job use for hash %x: %s", hash[:], err.Error())
	}
}
