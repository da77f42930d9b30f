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

	"github.com/sapcc/go-bits/easypg"

	"github.com/sapcc/wake-rsc/internal/rsc"
	"github.com/sapcc/wake-rsc/internal/service"
	"github.com/sapcc/wake-rsc/internal/test"
)

func TestMain(m *testing.M) {
	easypg.WithTestDB(m, func() int { return m.Run() })
}

func jobPayload(seed int) service.JobInsertPayload {
	inv := test.GenerateInvocation(seed)
	return service.JobInsertPayload{
		Cmd:    []byte(strings.Join(inv.Cmd, "\x00")),
		Env:    []byte(strings.Join(inv.Env, "\x00")),
		Cwd:    inv.Cwd,
		Stdin:  inv.Stdin,
		IsAtty: inv.IsATTY,
		VisibleFiles: []service.VisibleFile{
			{Path: inv.VisibleFiles[0].Path, Hash: inv.VisibleFiles[0].Hash},
		},
		Status:  0,
		Runtime: 12.5,
		Cputime: 10,
		Memory:  1024,
	}
}

func TestInsertThenLookupRoundTrips(t *testing.T) {
	s := test.NewSetup(t)

	payload := jobPayload(1)
	jobID, err := s.Service.InsertJob(payload)
	if err != nil {
		t.Fatalf("InsertJob failed: %s", err.Error())
	}
	if jobID == "" {
		t.Fatal("expected a non-empty job ID")
	}

	lookup := service.LookupPayload{
		Cmd:          payload.Cmd,
		Env:          payload.Env,
		Cwd:          payload.Cwd,
		Stdin:        payload.Stdin,
		IsAtty:       payload.IsAtty,
		VisibleFiles: payload.VisibleFiles,
	}
	result, err := s.Service.LookupJob(lookup)
	if err != nil {
		t.Fatalf("LookupJob failed: %s", err.Error())
	}
	if result.Runtime != payload.Runtime {
		t.Errorf("expected runtime %v, got %v", payload.Runtime, result.Runtime)
	}
	if result.Status != payload.Status {
		t.Errorf("expected status %d, got %d", payload.Status, result.Status)
	}
}

func TestLookupMissReturnsNoMatch(t *testing.T) {
	s := test.NewSetup(t)

	_, err := s.Service.LookupJob(service.LookupPayload{Cmd: []byte("never inserted")})
	if !errors.Is(err, rsc.ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestInsertDuplicateFingerprintConflicts(t *testing.T) {
	s := test.NewSetup(t)

	payload := jobPayload(2)
	_, err := s.Service.InsertJob(payload)
	if err != nil {
		t.Fatalf("first InsertJob failed: %s", err.Error())
	}

	_, err = s.Service.InsertJob(payload)
	if !errors.Is(err, rsc.ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate insert, got %v", err)
	}
}

func TestIngestBlobCreatesDistinctBlobsPerPut(t *testing.T) {
	s := test.NewSetup(t)

	id1, err := s.Service.IngestBlob(s.Config.ActiveBlobStoreID, strings.NewReader("some content"))
	if err != nil {
		t.Fatalf("first IngestBlob failed: %s", err.Error())
	}
	id2, err := s.Service.IngestBlob(s.Config.ActiveBlobStoreID, strings.NewReader("some content"))
	if err != nil {
		t.Fatalf("second IngestBlob failed: %s", err.Error())
	}
	// the in-memory-for-testing store keys each Put with an incrementing
	// counter rather than a content hash, so even identical content gets its
	// own blobs row (content-addressed dedup is exercised against the
	// filesystem store instead, see internal/drivers/filesystem).
	if id1 == id2 {
		t.Errorf("expected two independent Put calls to produce distinct blob IDs, got %q twice", id1)
	}
	if id1 == "" || id2 == "" {
		t.Error("expected non-empty blob IDs")
	}
}

func TestCheckAdmissionRejectsShortRuntime(t *testing.T) {
	s := test.NewSetup(t, test.WithMinCacheableRuntime(5))

	err := s.Service.CheckAdmission(rsc.Duration(1e9), rsc.Fingerprint{})
	if !errors.Is(err, rsc.ErrRuntimeTooShort) {
		t.Errorf("expected ErrRuntimeTooShort, got %v", err)
	}
}
