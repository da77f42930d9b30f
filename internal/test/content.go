/*******************************************************************************
*
* Copyright 2020 SAP SE
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

package test

import (
	"fmt"

	"github.com/sapcc/wake-rsc/internal/rsc"
)

// Invocation groups together the pieces that make up one reproducible job
// invocation (spec §1), deterministically generated from a seed so that
// tests can build many distinct-but-reproducible jobs without repeating
// themselves.
type Invocation struct {
	Cmd          []string
	Env          []string
	Cwd          string
	Stdin        string
	HiddenInfo   []byte
	IsATTY       bool
	VisibleFiles []rsc.VisibleFile
}

// GenerateInvocation deterministically builds an Invocation from a seed. Two
// calls with the same seed always produce byte-identical invocations (and
// thus the same fingerprint); different seeds almost always produce
// different fingerprints.
func GenerateInvocation(seed int) Invocation {
	return Invocation{
		Cmd:        []string{"gcc", "-c", fmt.Sprintf("input-%d.c", seed), "-o", fmt.Sprintf("output-%d.o", seed)},
		Env:        []string{"PATH=/usr/bin:/bin", fmt.Sprintf("SEED=%d", seed)},
		Cwd:        fmt.Sprintf("/home/build/workspace-%d", seed),
		Stdin:      "",
		HiddenInfo: []byte(fmt.Sprintf("toolchain-version-%d", seed)),
		IsATTY:     false,
		VisibleFiles: []rsc.VisibleFile{
			{
				Path: fmt.Sprintf("input-%d.c", seed),
				Hash: GenerateContentHash(seed),
			},
		},
	}
}

// GenerateContentHash deterministically produces a string that looks like
// the hash of a visible input file, without needing to actually hash
// anything -- the exact bytes do not matter for fingerprinting tests, only
// that two different seeds are (almost certainly) different.
func GenerateContentHash(seed int) string {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = byte(seed*31 + i)
	}
	return fmt.Sprintf("%x", buf)
}

// GenerateStdout deterministically produces example stdout/stderr content
// for a job, sized so that some jobs exercise the "db-embedded" blob store
// kind and others exercise stores with a larger capacity.
func GenerateStdout(seed int, sizeBytes int) []byte {
	buf := make([]byte, sizeBytes)
	for i := range buf {
		buf[i] = byte((seed + i) % 251)
	}
	return buf
}
