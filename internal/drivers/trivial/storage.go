/******************************************************************************
*
*  Copyright 2019 SAP SE
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

// Package trivial implements the "in-memory-for-testing" blob store kind
// (spec §4.2): an entirely in-RAM store for use in test suites, with a
// counter for keys so that each Put gets a distinct, deterministic key
// without needing real content hashing.
package trivial

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/sapcc/wake-rsc/internal/rsc"
)

func init() {
	rsc.BlobStoreRegistry.Add(func() rsc.BlobStore { return &Store{} })
}

// Store (kind ID "in-memory-for-testing") is a rsc.BlobStore that keeps all
// content in RAM without any persistence.
type Store struct {
	mutex   sync.Mutex
	blobs   map[string][]byte
	nextKey uint64

	// ForbidPut makes every Put call fail, for exercising storage-layer
	// error handling in handler tests.
	ForbidPut bool
}

// PluginTypeID implements the rsc.BlobStore interface.
func (d *Store) PluginTypeID() string { return "in-memory-for-testing" }

// Init implements the rsc.BlobStore interface.
func (d *Store) Init(config string) error {
	d.blobs = make(map[string][]byte)
	return nil
}

// Put implements the rsc.BlobStore interface.
func (d *Store) Put(content io.Reader) (string, int64, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.ForbidPut {
		return "", 0, fmt.Errorf("Put failed as requested")
	}

	buf, err := io.ReadAll(content)
	if err != nil {
		return "", 0, err
	}
	d.nextKey++
	key := fmt.Sprintf("test-blob-%d", d.nextKey)
	d.blobs[key] = buf
	return key, int64(len(buf)), nil
}

// Get implements the rsc.BlobStore interface.
func (d *Store) Get(key string) (io.ReadCloser, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	contents, exists := d.blobs[key]
	if !exists {
		return nil, rsc.ErrNoSuchBlob
	}
	return io.NopCloser(bytes.NewReader(contents)), nil
}

// Delete implements the rsc.BlobStore interface.
func (d *Store) Delete(key string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	delete(d.blobs, key)
	return nil
}

// DownloadURL implements the rsc.BlobStore interface. The URL uses the
// "test://" scheme followed by the key.
func (d *Store) DownloadURL(key string) (string, error) {
	return "test://" + key, nil
}

// BlobCount returns how many blobs currently exist in this store. Used in
// tests to validate that failure cases do not commit data to storage.
func (d *Store) BlobCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.blobs)
}
