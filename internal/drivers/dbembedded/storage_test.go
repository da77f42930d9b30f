/******************************************************************************
*
*  Copyright 2024 SAP SE
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

package dbembedded

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sapcc/wake-rsc/internal/rsc"
)

func TestStorePutGetRoundTrip(t *testing.T) {
	s := &Store{}
	if err := s.Init(""); err != nil {
		t.Fatalf("Init failed: %s", err.Error())
	}

	key, size, err := s.Put(strings.NewReader("hi there"))
	if err != nil {
		t.Fatalf("Put failed: %s", err.Error())
	}
	if size != 8 {
		t.Errorf("expected size 8, got %d", size)
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
	if string(buf) != "hi there" {
		t.Errorf("expected %q, got %q", "hi there", string(buf))
	}
}

func TestStorePutRejectsOversizedContent(t *testing.T) {
	s := &Store{}
	if err := s.Init("4"); err != nil {
		t.Fatalf("Init failed: %s", err.Error())
	}

	_, _, err := s.Put(strings.NewReader("too long"))
	if !errors.Is(err, rsc.ErrBlobTooLarge) {
		t.Errorf("expected ErrBlobTooLarge, got %v", err)
	}
}

func TestStorePutAcceptsContentAtExactLimit(t *testing.T) {
	s := &Store{}
	if err := s.Init("4"); err != nil {
		t.Fatalf("Init failed: %s", err.Error())
	}

	_, size, err := s.Put(strings.NewReader("abcd"))
	if err != nil {
		t.Fatalf("expected content exactly at the limit to be accepted, got %v", err)
	}
	if size != 4 {
		t.Errorf("expected size 4, got %d", size)
	}
}

func TestStoreInitDefaultsMaxBytesOnEmptyConfig(t *testing.T) {
	s := &Store{}
	if err := s.Init(""); err != nil {
		t.Fatalf("Init failed: %s", err.Error())
	}
	if s.maxBytes != defaultMaxBytes {
		t.Errorf("expected maxBytes to default to %d, got %d", defaultMaxBytes, s.maxBytes)
	}
}

func TestStoreInitRejectsNonNumericConfig(t *testing.T) {
	s := &Store{}
	if err := s.Init("not-a-number"); err == nil {
		t.Fatal("expected Init to reject a non-numeric config string")
	}
}

func TestStoreDeleteIsNoOp(t *testing.T) {
	s := &Store{}
	if err := s.Init(""); err != nil {
		t.Fatalf("Init failed: %s", err.Error())
	}
	key, _, err := s.Put(strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Put failed: %s", err.Error())
	}
	if err := s.Delete(key); err != nil {
		t.Errorf("expected Delete to be a no-op that never errors, got %v", err)
	}
	// content is still readable after Delete, since the key embeds it
	if _, err := s.Get(key); err != nil {
		t.Errorf("expected Get to still succeed after Delete, got %v", err)
	}
}

func TestStoreDownloadURLUsesDBScheme(t *testing.T) {
	s := &Store{}
	if err := s.Init(""); err != nil {
		t.Fatalf("Init failed: %s", err.Error())
	}
	u, err := s.DownloadURL("whatever")
	if err != nil {
		t.Fatalf("DownloadURL failed: %s", err.Error())
	}
	if u != "db://whatever" {
		t.Errorf("expected URL %q, got %q", "db://whatever", u)
	}
}

func TestStoreRegisteredWithBlobStoreRegistry(t *testing.T) {
	store, err := rsc.NewBlobStore("db-embedded", "")
	if err != nil {
		t.Fatalf("NewBlobStore failed: %s", err.Error())
	}
	if _, ok := store.(*Store); !ok {
		t.Fatalf("expected *Store, got %T", store)
	}
}
