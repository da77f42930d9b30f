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

import "errors"

// Sentinel errors shared across the API and blob store layers. Handlers in
// internal/api map these to HTTP status codes with errors.Is checks: client
// mistakes become 4xx, server-side faults become 5xx.
var (
	errFingerprintLength = errors.New("fingerprint must be exactly 32 bytes")

	// ErrNoMatch is returned by job lookup when no job exists for a given
	// fingerprint. It maps to a 404 NoMatch response, not a 500.
	ErrNoMatch = errors.New("no job matches this fingerprint")

	// ErrConflict is returned when a job with the same fingerprint already
	// exists (insert-time unique violation, or admission's pre-check).
	ErrConflict = errors.New("a job with this fingerprint already exists")

	// ErrRuntimeTooShort is returned by the admission controller when a job's
	// reported runtime is below the configured minimum worth caching.
	ErrRuntimeTooShort = errors.New("job runtime is below the minimum caching threshold")

	// ErrShed is returned by the admission controller when the job is
	// rejected due to load shedding.
	ErrShed = errors.New("too many requests, try again later")

	// ErrUnauthorized is returned by the auth middleware when the
	// Authorization header is missing or does not match any ApiKey.
	ErrUnauthorized = errors.New("missing or invalid API key")

	// ErrBlobTooLarge is returned by the DbEmbedded store when a blob exceeds
	// its fixed capacity.
	ErrBlobTooLarge = errors.New("blob exceeds the maximum size for this store")

	// ErrNoSuchBlob is returned by a BlobStore when asked to read a key it
	// does not have. No driver's Delete returns it: deleting an absent key is
	// idempotent for every variant implemented here.
	ErrNoSuchBlob = errors.New("no such blob")

	// ErrCannotGenerateURL is returned by BlobStore.DownloadURL when the
	// store cannot produce a URL for a key (not
	// applicable to any of the three variants implemented here, but kept for
	// parity with future store kinds, per spec §4.2).
	ErrCannotGenerateURL = errors.New("DownloadURL is not supported by this store")

	// ErrActiveStoreNotFound is a startup-fatal error: the configured
	// active_store UUID does not name a BlobStore row.
	ErrActiveStoreNotFound = errors.New("configured active_store does not exist")

	// ErrLRUNotImplemented is returned at startup if job_eviction.kind is
	// "lru": the config schema allows it (spec §6) but only TTL eviction is
	// implemented (spec §4.8, §9 Open Questions). We treat attempting to
	// configure it as a startup error rather than a silent fall-through to
	// TTL, since silently ignoring an operator's configured eviction policy
	// is more dangerous than refusing to start.
	ErrLRUNotImplemented = errors.New("job_eviction.kind \"lru\" is declared but not implemented; use \"ttl\"")
)
