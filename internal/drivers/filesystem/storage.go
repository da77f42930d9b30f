/******************************************************************************
*
*  Copyright 2022 ruilopes.com
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

// Package filesystem implements the "filesystem" blob store kind (spec
// §4.2, §6): content is written to the local disk, addressed by the BLAKE3
// hash of its own bytes so that identical blobs are written only once.
package filesystem

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"

	"github.com/sapcc/wake-rsc/internal/rsc"
)

func init() {
	rsc.BlobStoreRegistry.Add(func() rsc.BlobStore { return &Store{} })
}

// Store (kind ID "filesystem") is a rsc.BlobStore that stores content in the
// local filesystem under a content-addressed path layout.
type Store struct {
	rootPath string
}

// PluginTypeID implements the rsc.BlobStore interface.
func (d *Store) PluginTypeID() string { return "filesystem" }

// Init implements the rsc.BlobStore interface. The configuration string is
// the absolute or relative root directory to store blobs under.
func (d *Store) Init(config string) (err error) {
	if config == "" {
		return errors.New("filesystem blob store requires a root path in its config")
	}
	d.rootPath, err = filepath.Abs(config)
	return err
}

// keyPath splits a hex content key "abcd1234..." into "root/AB/CD/abcd1234...",
// spec §6's "root/XX/YY/ZZZZ..." layout: XX and YY are the first and second
// content bytes in uppercase hex, so the root and each first-level directory
// hold at most 256 subdirectories; the leaf directories are not bounded.
func (d *Store) keyPath(key string) string {
	if len(key) < 4 {
		return filepath.Join(d.rootPath, strings.ToUpper(key))
	}
	return filepath.Join(d.rootPath, strings.ToUpper(key[0:2]), strings.ToUpper(key[2:4]), key)
}

// randomHexByte returns a single random byte rendered as two uppercase hex
// digits, used to fan temporary uploads out across root/tmp/XX/YY/ before
// their content hash (and thus their final path) is known.
func randomHexByte() (string, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b[:])), nil
}

// Put implements the rsc.BlobStore interface.
func (d *Store) Put(content io.Reader) (string, int64, error) {
	xx, err := randomHexByte()
	if err != nil {
		return "", 0, err
	}
	yy, err := randomHexByte()
	if err != nil {
		return "", 0, err
	}
	tmpDir := filepath.Join(d.rootPath, "tmp", xx, yy)
	if err := os.MkdirAll(tmpDir, 0777); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(tmpDir, "upload-*.tmp")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // no-op once the rename below succeeds

	hasher := blake3.New(32, nil)
	size, err := io.Copy(io.MultiWriter(tmp, hasher), content)
	closeErr := tmp.Close()
	if err != nil {
		return "", 0, err
	}
	if closeErr != nil {
		return "", 0, closeErr
	}

	key := hex.EncodeToString(hasher.Sum(nil))
	finalPath := d.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0777); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", 0, err
	}
	return key, size, nil
}

// Get implements the rsc.BlobStore interface.
func (d *Store) Get(key string) (io.ReadCloser, error) {
	f, err := os.Open(d.keyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, rsc.ErrNoSuchBlob
	}
	return f, err
}

// Delete implements the rsc.BlobStore interface.
func (d *Store) Delete(key string) error {
	err := os.Remove(d.keyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// DownloadURL implements the rsc.BlobStore interface. It returns a file://
// URL pointing directly at the blob's on-disk path (spec §4.2: DownloadURL
// must "reflect the store's access scheme").
func (d *Store) DownloadURL(key string) (string, error) {
	return fmt.Sprintf("file://%s", d.keyPath(key)), nil
}
