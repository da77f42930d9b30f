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

// Package models contains the rows of the cache's relational store (spec
// §3). Every struct here is a 1:1 mapping of a table registered with gorp in
// the rsc package's initModels.
package models

import "time"

// BlobStore is a configured blob storage backend. Its Kind selects which
// factory in rsc.BlobStoreRegistry constructs the runtime instance, and
// Config is an opaque, kind-specific configuration string (e.g. a filesystem
// root path, or empty for the test variant).
type BlobStore struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	Config    string    `db:"config"`
	CreatedAt time.Time `db:"created_at"`
}

// Blob is one piece of content-addressed-or-not content held by a BlobStore.
// Key is opaque to everything except the BlobStore that produced it.
type Blob struct {
	ID        string    `db:"id"`
	Key       string    `db:"key"`
	StoreID   string    `db:"store_id"`
	SizeBytes int64     `db:"size_bytes"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Job status codes, matching the reference implementation's exit-status
// encoding (spec §3): 0 means the job exited with status 0, -1 signals that
// stdout/stderr recreate a non-zero or signal exit for wake's own reporting
// purposes. Negative values below -1 are reserved by the wire protocol for
// "terminated by signal N" (-(128+N)) and are passed through unexamined.
type JobStatus int

const (
	JobStatusSuccess JobStatus = 0
	JobStatusFailure JobStatus = -1
)

// Job is one cached build/job execution (spec §3). Hash is the BLAKE3
// fingerprint of the (cmd, env, cwd, stdin, hidden_info, is_atty,
// visible_files) tuple, computed the same way at insert and lookup time.
type Job struct {
	ID           string    `db:"id"`
	Hash         []byte    `db:"hash"`
	Cmd          []byte    `db:"cmd"`
	Env          []byte    `db:"env"`
	Cwd          string    `db:"cwd"`
	Stdin        string    `db:"stdin"`
	IsAtty       bool      `db:"is_atty"`
	HiddenInfo   []byte    `db:"hidden_info"`
	StdoutBlobID *string   `db:"stdout_blob_id"`
	StderrBlobID *string   `db:"stderr_blob_id"`
	Status       JobStatus `db:"status"`
	RuntimeMs    int64     `db:"runtime_ms"`
	CputimeMs    int64     `db:"cputime_ms"`
	MemoryBytes  int64     `db:"memory_bytes"`
	IBytes       int64     `db:"i_bytes"`
	OBytes       int64     `db:"o_bytes"`
	Label        string    `db:"label"`
	SizeBytes    int64     `db:"size_bytes"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// OutputFile is one regular-file output produced by a Job.
type OutputFile struct {
	JobID  string `db:"job_id"`
	Path   string `db:"path"`
	Mode   int    `db:"mode"`
	BlobID string `db:"blob_id"`
}

// OutputSymlink is one symlink output produced by a Job. Link is the
// symlink's target, stored verbatim (never resolved).
type OutputSymlink struct {
	JobID string `db:"job_id"`
	Path  string `db:"path"`
	Link  string `db:"link"`
}

// OutputDir is one directory output produced by a Job. Hidden marks
// directories that wake creates implicitly (parents of other outputs)
// rather than ones the job declared explicitly.
type OutputDir struct {
	JobID  string `db:"job_id"`
	Path   string `db:"path"`
	Mode   int    `db:"mode"`
	Hidden bool   `db:"hidden"`
}

// JobUse records one lookup hit against a Job, timestamped. The TTL eviction
// engine does not consult it; jobs expire by creation time (spec §4.8).
type JobUse struct {
	JobID     string    `db:"job_id"`
	CreatedAt time.Time `db:"created_at"`
}

// JobHistory aggregates lifetime counters for every fingerprint ever seen,
// independent of whether a matching Job row currently exists (a job can be
// evicted and its history survives, spec §4.10).
type JobHistory struct {
	Hash      []byte    `db:"hash"`
	Hits      int64     `db:"hits"`
	Misses    int64     `db:"misses"`
	Evictions int64     `db:"evictions"`
	Shed      int64     `db:"shed"`
	Denied    int64     `db:"denied"`
	Conflict  int64     `db:"conflict"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ApiKey is a bearer credential accepted by the service frontend's auth
// middleware (spec §7, SUPPLEMENTED FEATURES).
type ApiKey struct {
	ID          string    `db:"id"`
	Key         string    `db:"key"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}
