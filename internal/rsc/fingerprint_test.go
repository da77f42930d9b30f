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

import "testing"

func TestComputeFingerprintIsDeterministic(t *testing.T) {
	in := FingerprintInput{
		Cmd:          []byte("gcc -c input.c -o input.o"),
		Env:          []byte("PATH=/usr/bin"),
		Cwd:          "/home/build",
		VisibleFiles: []VisibleFile{{Path: "input.c", Hash: "abc123"}},
	}

	a := ComputeFingerprint(in)
	b := ComputeFingerprint(in)
	if a != b {
		t.Fatalf("expected identical input to produce identical fingerprints, got %s != %s", a, b)
	}
}

func TestComputeFingerprintDiffersOnAnyField(t *testing.T) {
	base := FingerprintInput{Cmd: []byte("gcc -c a.c"), Cwd: "/build"}
	variants := []FingerprintInput{
		{Cmd: []byte("gcc -c b.c"), Cwd: "/build"},
		{Cmd: []byte("gcc -c a.c"), Cwd: "/other"},
		{Cmd: []byte("gcc -c a.c"), Cwd: "/build", IsAtty: true},
		{Cmd: []byte("gcc -c a.c"), Cwd: "/build", HiddenInfo: []byte("x")},
		{Cmd: []byte("gcc -c a.c"), Cwd: "/build", VisibleFiles: []VisibleFile{{Path: "a.c", Hash: "h"}}},
	}

	baseHash := ComputeFingerprint(base)
	for i, v := range variants {
		if ComputeFingerprint(v) == baseHash {
			t.Errorf("variant %d unexpectedly produced the same fingerprint as base", i)
		}
	}
}

func TestFingerprintStringRoundTrips(t *testing.T) {
	in := FingerprintInput{Cmd: []byte("echo hi")}
	original := ComputeFingerprint(in)

	parsed, err := ParseFingerprint(original.String())
	if err != nil {
		t.Fatalf("ParseFingerprint failed: %s", err.Error())
	}
	if parsed != original {
		t.Fatalf("round-tripped fingerprint %s does not match original %s", parsed, original)
	}
}

func TestParseFingerprintRejectsWrongLength(t *testing.T) {
	_, err := ParseFingerprint("abcd")
	if err == nil {
		t.Fatal("expected an error for a too-short fingerprint string")
	}
}

func TestFingerprintIsZero(t *testing.T) {
	var zero Fingerprint
	if !zero.IsZero() {
		t.Error("expected zero-value Fingerprint to report IsZero() == true")
	}
	nonZero := ComputeFingerprint(FingerprintInput{Cmd: []byte("x")})
	if nonZero.IsZero() {
		t.Error("expected a computed fingerprint to report IsZero() == false")
	}
}
