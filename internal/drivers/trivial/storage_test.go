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

package trivial

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sapcc/wake-rsc/internal/rsc"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := &Store{}
	if err := s.Init(""); err != nil {
		t.Fatalf("Init failed: %s", err.Error())
	}
	return s
}

func TestStorePutGetRoundTrip(t *testing.T) {
	s := newStore(t)

	key, size, err := s.Put(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Put failed: %s", err.Error())
	}
	if size != 11 {
		t.Errorf("expected size 11, got %d", size)
	}

	reader, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %s", err.Error())
	}
	defer reader.Close()
	buf, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("could not read blob content: %s", err.Error())
	}
	if string(buf) != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", string(buf))
	}
}

func TestStoreGetMissingKey(t *testing.T) {
	s := newStore(t)
	_, err := s.Get("no-such-key")
	if !errors.Is(err, rsc.ErrNoSuchBlob) {
		t.Errorf("expected ErrNoSuchBlob, got %v", err)
	}
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	s := newStore(t)
	key, _, err := s.Put(strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Put failed: %s", err.Error())
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("first Delete failed: %s", err.Error())
	}
	if err := s.Delete(key); err != nil {
		t.Fatalf("second Delete on an already-deleted key failed: %s", err.Error())
	}
	if s.BlobCount() != 0 {
		t.Errorf("expected BlobCount 0 after delete, got %d", s.BlobCount())
	}
}

func TestStoreForbidPut(t *testing.T) {
	s := newStore(t)
	s.ForbidPut = true

	_, _, err := s.Put(strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected Put to fail when ForbidPut is set")
	}
	if s.BlobCount() != 0 {
		t.Errorf("expected no blob to be stored after a forbidden Put, got count %d", s.BlobCount())
	}
}

func TestStoreDownloadURLUsesTestScheme(t *testing.T) {
	s := newStore(t)
	u, err := s.DownloadURL("whatever")
	if err != nil {
		t.Fatalf("DownloadURL failed: %s", err.Error())
	}
	if u != "test://whatever" {
		t.Errorf("expected URL %q, got %q", "test://whatever", u)
	}
}

func TestStoreRegisteredWithBlobStoreRegistry(t *testing.T) {
	store, err := rsc.NewBlobStore("in-memory-for-testing", "")
	if err != nil {
		t.Fatalf("NewBlobStore failed: %s", err.Error())
	}
	if _, ok := store.(*Store); !ok {
		t.Fatalf("expected *Store, got %T", store)
	}
}
