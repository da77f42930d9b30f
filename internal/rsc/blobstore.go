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
	"errors"
	"io"
	"sync"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/pluggable"
)

// BlobStore is the abstract interface for a pluggable blob storage backend
// (spec §4.2). Each BlobStore row in the database names one configured
// instance of exactly one of the kinds registered in BlobStoreRegistry.
type BlobStore interface {
	pluggable.Plugin

	// Init is called once, right after construction, with the raw
	// configuration blob stored alongside the BlobStore row.
	Init(config string) error

	// Put writes the given content under a new key chosen by the store and
	// returns that key together with the number of bytes written. The
	// caller is responsible for recording the returned key, the blob's
	// size, and this store's ID as a new Blob row.
	Put(content io.Reader) (key string, sizeBytes int64, err error)

	// Get opens the content previously stored under key. Returns
	// ErrNoSuchBlob if key is not present.
	Get(key string) (io.ReadCloser, error)

	// Delete removes the content stored under key. Deleting an absent key
	// is idempotent for every variant implemented here.
	Delete(key string) error

	// DownloadURL returns a URL that a client may fetch content from
	// directly, bypassing the service frontend, if this store kind
	// supports it. Returns ErrCannotGenerateURL otherwise; job lookup treats
	// a blob whose URL cannot be generated as unresolvable (NoMatch).
	DownloadURL(key string) (string, error)
}

// BlobStoreRegistry is a pluggable.Registry for BlobStore implementations.
// The three variants named in spec §4.2 (filesystem, dbembedded, test)
// register themselves from their own packages' init() functions.
var BlobStoreRegistry pluggable.Registry[BlobStore]

// NewBlobStore creates a new BlobStore using one of the factory functions
// registered with BlobStoreRegistry, then initializes it with the given raw
// configuration.
func NewBlobStore(kind string, config string) (BlobStore, error) {
	logg.Debug("initializing blob store %q...", kind)

	bs := BlobStoreRegistry.Instantiate(kind)
	if bs == nil {
		return nil, errors.New("no such blob store kind: " + kind)
	}
	return bs, bs.Init(config)
}

// NewStoreResolver builds a storeID -> BlobStore lookup function backed by
// the blob_stores table, lazily constructing and caching one BlobStore
// instance per distinct row. Both cmd/api and cmd/janitor use this to turn
// the storeID strings recorded on Blob/Configuration rows into live
// drivers without re-parsing a row's config on every call.
func NewStoreResolver(db *DB) func(storeID string) (BlobStore, error) {
	var mutex sync.RWMutex
	cache := make(map[string]BlobStore)
	return func(storeID string) (BlobStore, error) {
		mutex.RLock()
		store, ok := cache[storeID]
		mutex.RUnlock()
		if ok {
			return store, nil
		}

		row, err := db.GetBlobStore(storeID)
		if err != nil {
			return nil, err
		}
		store, err = NewBlobStore(row.Kind, row.Config)
		if err != nil {
			return nil, err
		}

		mutex.Lock()
		defer mutex.Unlock()
		if existing, ok := cache[storeID]; ok {
			return existing, nil
		}
		cache[storeID] = store
		return store, nil
	}
}
