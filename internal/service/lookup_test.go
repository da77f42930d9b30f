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

package service_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/sapcc/wake-rsc/internal/rsc"
	"github.com/sapcc/wake-rsc/internal/service"
	"github.com/sapcc/wake-rsc/internal/test"
)

func TestLookupResolvesOutputFilesAndStdio(t *testing.T) {
	s := test.NewSetup(t)

	stdoutID, err := s.Service.IngestBlob(s.Config.ActiveBlobStoreID, strings.NewReader("stdout content"))
	if err != nil {
		t.Fatalf("IngestBlob (stdout) failed: %s", err.Error())
	}
	fileBlobID, err := s.Service.IngestBlob(s.Config.ActiveBlobStoreID, strings.NewReader("output file content"))
	if err != nil {
		t.Fatalf("IngestBlob (output file) failed: %s", err.Error())
	}

	payload := jobPayload(3)
	payload.StdoutBlobID = stdoutID
	payload.OutputFiles = []service.OutputFilePayload{
		{Path: "out.o", Mode: 0o644, BlobID: fileBlobID},
	}
	payload.OutputSymlinks = []service.OutputSymlinkPayload{
		{Path: "out.link", Link: "out.o"},
	}
	payload.OutputDirs = []service.OutputDirPayload{
		{Path: "out.dir", Mode: 0o755},
	}

	_, err = s.Service.InsertJob(payload)
	if err != nil {
		t.Fatalf("InsertJob failed: %s", err.Error())
	}

	lookup := service.LookupPayload{
		Cmd: payload.Cmd, Env: payload.Env, Cwd: payload.Cwd, Stdin: payload.Stdin,
		IsAtty: payload.IsAtty, VisibleFiles: payload.VisibleFiles,
	}
	result, err := s.Service.LookupJob(lookup)
	if err != nil {
		t.Fatalf("LookupJob failed: %s", err.Error())
	}

	if result.StdoutBlob.ID != stdoutID {
		t.Errorf("expected stdout blob ID %q, got %q", stdoutID, result.StdoutBlob.ID)
	}
	if result.StdoutBlob.URL == "" {
		t.Error("expected a non-empty stdout download URL")
	}
	if len(result.OutputFiles) != 1 || result.OutputFiles[0].Blob.ID != fileBlobID {
		t.Errorf("expected one output file resolved to blob %q, got %+v", fileBlobID, result.OutputFiles)
	}
	if len(result.OutputSymlinks) != 1 || result.OutputSymlinks[0].Link != "out.o" {
		t.Errorf("expected one output symlink to out.o, got %+v", result.OutputSymlinks)
	}
	if len(result.OutputDirs) != 1 || result.OutputDirs[0].Path != "out.dir" {
		t.Errorf("expected one output dir out.dir, got %+v", result.OutputDirs)
	}
}

func TestLookupDegradesToNoMatchWhenBlobUnresolvable(t *testing.T) {
	s := test.NewSetup(t)

	stdoutID, err := s.Service.IngestBlob(s.Config.ActiveBlobStoreID, strings.NewReader("stdout content"))
	if err != nil {
		t.Fatalf("IngestBlob (stdout) failed: %s", err.Error())
	}

	payload := jobPayload(4)
	payload.StdoutBlobID = stdoutID

	_, err = s.Service.InsertJob(payload)
	if err != nil {
		t.Fatalf("InsertJob failed: %s", err.Error())
	}

	// the blob row exists, but its store can no longer be resolved
	s.Service.Stores = func(string) (rsc.BlobStore, error) {
		return nil, errors.New("store unavailable")
	}

	lookup := service.LookupPayload{
		Cmd: payload.Cmd, Env: payload.Env, Cwd: payload.Cwd, Stdin: payload.Stdin,
		IsAtty: payload.IsAtty, VisibleFiles: payload.VisibleFiles,
	}
	_, err = s.Service.LookupJob(lookup)
	if !errors.Is(err, rsc.ErrNoMatch) {
		t.Errorf("expected ErrNoMatch when the stdout blob's store cannot be resolved, got %v", err)
	}
}

func TestLookupOfDifferentInvocationMisses(t *testing.T) {
	s := test.NewSetup(t)

	payload := jobPayload(5)
	_, err := s.Service.InsertJob(payload)
	if err != nil {
		t.Fatalf("InsertJob failed: %s", err.Error())
	}

	other := jobPayload(6)
	lookup := service.LookupPayload{
		Cmd: other.Cmd, Env: other.Env, Cwd: other.Cwd, Stdin: other.Stdin,
		IsAtty: other.IsAtty, VisibleFiles: other.VisibleFiles,
	}
	_, err = s.Service.LookupJob(lookup)
	if !errors.Is(err, rsc.ErrNoMatch) {
		t.Errorf("expected ErrNoMatch for a different invocation, got %v", err)
	}
}
