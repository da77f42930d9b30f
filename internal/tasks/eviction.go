/******************************************************************************
*
*  Copyright 2020 SAP SE
*
*  Licensed under the Apache License, Version 2.0 (the "License");
*  you may not use this file except in compliance with the License.
*  You may obtain a copy of the License at
*
*      http://www.apache.org/licenses/LICENSE-2.0
*
*  Unless required by applicable law or agreed to in writing, software
*  distributed under the License is distributed on an "AS IS" BASIS,
*  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
*  See the License for the specific language governing permissions and
*  limitations under the License.
*
******************************************************************************/

package tasks

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/jobloop"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/wake-rsc/internal/models"
	"github.com/sapcc/wake-rsc/internal/rsc"
)

var jobEvictionSearchQuery = sqlext.SimplifyWhitespace(`
	SELECT j.* FROM jobs j
		WHERE j.created_at < $1
	ORDER BY j.created_at ASC
	LIMIT 1
`)

// JobEvictionJob is a job. Each task finds one job whose TTL (spec §4.8) has
// expired -- its created_at predates the cutoff -- and deletes it. Eviction
// is TTL-only, never LRU (see ErrLRUNotImplemented): job_uses is not
// consulted here. Deleting the jobs row cascades to its
// output_files/output_symlinks/output_dirs/job_uses rows; the job_history
// counters survive, since they are keyed by hash rather than by job ID.
func (j *Janitor) JobEvictionJob(registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.ProducerConsumerJob[models.Job]{
		Metadata: jobloop.JobMetadata{
			ReadableName: "evict expired jobs",
			CounterOpts: prometheus.CounterOpts{
				Name: "rsc_job_evictions",
				Help: "Counter for jobs evicted for exceeding their TTL.",
			},
		},
		DiscoverTask: func(_ context.Context, _ prometheus.Labels) (job models.Job, err error) {
			cutoff := j.timeNow().Add(-time.Duration(j.cfg.JobTTL))
			err = j.db.SelectOne(&job, jobEvictionSearchQuery, cutoff)
			return job, err
		},
		ProcessTask: j.evictJob,
	}).Setup(registerer)
}

func (j *Janitor) evictJob(_ context.Context, job models.Job, _ prometheus.Labels) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer rsc.RollbackUnlessCommitted(tx)

	_, err = tx.Delete(&job) //nolint:gosec // Delete does not retain the pointer after it returns
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO job_history (hash, evictions, created_at, updated_at) VALUES ($1, 1, $2, $2)
			ON CONFLICT (hash) DO UPDATE SET evictions = job_history.evictions + 1, updated_at = $2
	`, job.Hash, j.timeNow())
	if err != nil {
		return err
	}

	logg.Info("evicted job %s (hash %x)", job.ID, job.Hash)
	return tx.Commit()
}

var orphanedBlobSearchQuery = sqlext.SimplifyWhitespace(`
	SELECT b.* FROM blobs b
		WHERE b.updated_at < $1
			AND NOT EXISTS (SELECT 1 FROM jobs j WHERE j.stdout_blob_id = b.id OR j.stderr_blob_id = b.id)
			AND NOT EXISTS (SELECT 1 FROM output_files f WHERE f.blob_id = b.id)
	ORDER BY b.updated_at ASC
	LIMIT 1
`)

// BlobEvictionJob is a job. Each task finds one blob that is older than the
// configured grace period and is no longer referenced by any job as
// stdout/stderr or as an output file (spec §4.8's set-difference query:
// "all blobs" minus "all blobs currently referenced"), then deletes it from
// both its backing store and the blobs table.
//
// The grace period exists so that a blob just written for a job whose insert
// transaction has not committed yet is never swept out from under it.
func (j *Janitor) BlobEvictionJob(registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.ProducerConsumerJob[models.Blob]{
		Metadata: jobloop.JobMetadata{
			ReadableName: "sweep orphaned blobs",
			CounterOpts: prometheus.CounterOpts{
				Name: "rsc_blob_sweeps",
				Help: "Counter for blobs swept after their grace period elapsed unreferenced.",
			},
		},
		DiscoverTask: func(_ context.Context, _ prometheus.Labels) (blob models.Blob, err error) {
			cutoff := j.timeNow().Add(-time.Duration(j.cfg.BlobGracePeriod))
			err = j.db.SelectOne(&blob, orphanedBlobSearchQuery, cutoff)
			return blob, err
		},
		ProcessTask: j.sweepBlob,
	}).Setup(registerer)
}

func (j *Janitor) sweepBlob(_ context.Context, blob models.Blob, _ prometheus.Labels) error {
	//delete from the DB first: if a concurrent insert started referencing this
	//blob in the meantime, the DELETE fails (or simply no longer matches the
	//discovery query) and we never touch the backing store. The other way
	//around risks deleting live content out from under a job that just started
	//referencing it.
	_, err := j.db.Delete(&blob) //nolint:gosec // Delete does not retain the pointer after it returns
	if err != nil {
		return err
	}

	store, err := j.stores(blob.StoreID)
	if err != nil {
		return err
	}
	err = store.Delete(blob.Key)
	if err != nil {
		return err
	}

	logg.Info("swept orphaned blob %s (key %s)", blob.ID, blob.Key)
	return nil
}
