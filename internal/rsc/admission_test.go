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
	"testing"
)

func TestAdmissionRejectsRuntimeTooShort(t *testing.T) {
	cfg := Configuration{MinCacheableRuntime: Duration(5e9)}
	a := NewAdmission(cfg, &LoadEstimate{}, nil)

	decision, err := a.Check(Duration(1e9), Fingerprint{})
	if decision != RejectedRuntimeTooShort {
		t.Errorf("expected RejectedRuntimeTooShort, got %v", decision)
	}
	if !errors.Is(err, ErrRuntimeTooShort) {
		t.Errorf("expected ErrRuntimeTooShort, got %v", err)
	}
}

func TestAdmissionAcceptsWithoutSheddingOrConflict(t *testing.T) {
	cfg := Configuration{MinCacheableRuntime: 0, MaxConcurrentInserts: 0}
	a := NewAdmission(cfg, &LoadEstimate{}, nil)

	decision, err := a.Check(Duration(1e9), Fingerprint{1, 2, 3})
	if decision != Accepted {
		t.Errorf("expected Accepted, got %v", decision)
	}
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestAdmissionShedsWhenLoadExceedsTarget(t *testing.T) {
	load := &LoadEstimate{}
	for i := 0; i < 10; i++ {
		load.Increment()
	}
	cfg := Configuration{MaxConcurrentInserts: 5}
	a := NewAdmission(cfg, load, nil)
	a.randFloat = func() float64 { return 0 } // always "roll" into the shed bucket

	decision, err := a.Check(0, Fingerprint{})
	if decision != RejectedShed {
		t.Errorf("expected RejectedShed at 2x target load, got %v", decision)
	}
	if !errors.Is(err, ErrShed) {
		t.Errorf("expected ErrShed, got %v", err)
	}
}

func TestAdmissionDoesNotShedBelowTarget(t *testing.T) {
	load := &LoadEstimate{}
	load.Increment()
	cfg := Configuration{MaxConcurrentInserts: 100}
	a := NewAdmission(cfg, load, nil)
	a.randFloat = func() float64 { return 0 }

	decision, _ := a.Check(0, Fingerprint{})
	if decision != Accepted {
		t.Errorf("expected Accepted well below target load, got %v", decision)
	}
}

func TestLoadEstimateIncrementDecrement(t *testing.T) {
	load := &LoadEstimate{}
	if load.Get() != 0 {
		t.Fatalf("expected initial load 0, got %d", load.Get())
	}
	load.Increment()
	load.Increment()
	load.Decrement()
	if load.Get() != 1 {
		t.Fatalf("expected load 1 after 2 increments and 1 decrement, got %d", load.Get())
	}
}

func TestShedChanceClampsToOne(t *testing.T) {
	load := &LoadEstimate{}
	for i := 0; i < 100; i++ {
		load.Increment()
	}
	a := NewAdmission(Configuration{MaxConcurrentInserts: 1}, load, nil)
	if chance := a.shedChance(); chance != 1 {
		t.Errorf("expected shedChance to clamp to 1, got %f", chance)
	}
}
