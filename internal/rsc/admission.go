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
	"math/rand"
	"sync"
)

// LoadEstimate is a process-wide, concurrency-safe cell holding the current
// load figure that the admission controller sheds against (spec §4.7): an
// integer count of in-flight job inserts guarded by a reader-writer lock.
// Increment/Decrement are called once per in-flight job insert; Get is
// called by the admission check on every /job/allow request and by the
// dashboard.
type LoadEstimate struct {
	mutex   sync.RWMutex
	current int
}

// Increment records the start of one concurrent job insert.
func (l *LoadEstimate) Increment() {
	l.mutex.Lock()
	l.current++
	l.mutex.Unlock()
}

// Decrement records the end of one concurrent job insert.
func (l *LoadEstimate) Decrement() {
	l.mutex.Lock()
	l.current--
	l.mutex.Unlock()
}

// Get reads the current load.
func (l *LoadEstimate) Get() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.current
}

// Admission implements the admission controller (spec §4.7): a decision
// tree run before a client is allowed to push a job, gating on minimum
// runtime, process-wide load shedding, and whether the fingerprint is
// already cached.
type Admission struct {
	cfg   Configuration
	load  *LoadEstimate
	db    *DB
	// randFloat is swappable in tests so that shed-chance decisions are
	// deterministic instead of actually random.
	randFloat func() float64
}

// NewAdmission creates an Admission controller sharing the given LoadEstimate
// with whatever component increments it around each job insert.
func NewAdmission(cfg Configuration, load *LoadEstimate, db *DB) *Admission {
	return &Admission{cfg: cfg, load: load, db: db, randFloat: rand.Float64} //nolint:gosec // load-shedding coin flip, not security-relevant
}

// Decision is the outcome of an admission check, together with the
// JobHistory counter it should drive (spec §4.10).
type Decision int

const (
	// Accepted means the client may proceed to upload blobs and POST the job.
	Accepted Decision = iota
	// RejectedRuntimeTooShort corresponds to ErrRuntimeTooShort / HTTP 406.
	RejectedRuntimeTooShort
	// RejectedShed corresponds to ErrShed / HTTP 429.
	RejectedShed
	// RejectedConflict corresponds to ErrConflict / HTTP 409.
	RejectedConflict
	// CheckFailed means the check itself could not be completed (e.g. a
	// database error while looking up an existing fingerprint) -- distinct
	// from RejectedConflict so that a transient failure is never recorded as
	// a fingerprint conflict in the JobHistory aggregator.
	CheckFailed
)

// Check runs the decision tree of spec §4.7 for a job with the given
// reported runtime and fingerprint, returning both a Decision and the error
// a handler should respond with (nil for Accepted).
func (a *Admission) Check(runtime Duration, hash Fingerprint) (Decision, error) {
	if runtime < a.cfg.MinCacheableRuntime {
		return RejectedRuntimeTooShort, ErrRuntimeTooShort
	}

	shedChance := a.shedChance()
	if shedChance > 0 && a.randFloat() < shedChance {
		return RejectedShed, ErrShed
	}

	if a.db != nil {
		count, err := a.db.SelectInt(`SELECT COUNT(*) FROM jobs WHERE hash = $1`, hash[:])
		if err != nil {
			return CheckFailed, err
		}
		if count > 0 {
			return RejectedConflict, ErrConflict
		}
	}

	return Accepted, nil
}

// shedChance computes clamp(current_load/target_load - 1, 0, 1). A
// MaxConcurrentInserts of 0 disables shedding entirely (never divide by
// zero; treat as "no configured target").
func (a *Admission) shedChance() float64 {
	target := a.cfg.MaxConcurrentInserts
	if target <= 0 {
		return 0
	}
	current := 0
	if a.load != nil {
		current = a.load.Get()
	}
	chance := float64(current)/float64(target) - 1
	switch {
	case chance < 0:
		return 0
	case chance > 1:
		return 1
	default:
		return chance
	}
}
