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
	"encoding/binary"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Fingerprint is the 256-bit digest that uniquely identifies a job's input
// tuple. It is produced by ComputeFingerprint and stored in the database as
// raw bytes; String() renders it in the lowercase hexadecimal form used on
// the wire and in logs.
type Fingerprint [32]byte

// String implements the fmt.Stringer interface.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether this is the zero Fingerprint (never a valid hash).
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// VisibleFile is one entry of FingerprintInput.VisibleFiles: a declared input
// file identified by its path and a caller-supplied content hash. The hash is
// opaque to the fingerprint computation -- it is just another length-prefixed
// byte string.
type VisibleFile struct {
	Path string
	Hash string
}

// FingerprintInput is the subset of a job's fields that participate in its
// fingerprint. service.JobInsertPayload and service.LookupPayload both reduce to this struct
// before hashing, so that insertion and lookup agree bit-exactly (spec
// requirement: "the two MUST agree bit-exactly for a hit").
type FingerprintInput struct {
	Cmd          []byte
	Env          []byte
	Cwd          string
	Stdin        string
	HiddenInfo   []byte
	IsAtty       bool
	VisibleFiles []VisibleFile
}

// ComputeFingerprint produces the fixed-width 256-bit fingerprint of the
// given input tuple. The hash input is a well-defined, length-prefixed
// concatenation (all lengths little-endian uint64, strings as raw bytes):
//
//	len(cmd)‖cmd ‖ len(env)‖env ‖ len(cwd)‖cwd ‖ len(stdin)‖stdin ‖
//	len(hidden_info)‖hidden_info ‖ is_atty (1 byte) ‖ len(visible_files) ‖
//	for each file: len(path)‖path ‖ len(hash)‖hash
//
// label, status, runtime, resource counters and output contents never
// participate in this computation.
func ComputeFingerprint(in FingerprintInput) Fingerprint {
	h := blake3.New(32, nil)

	writeLP(h, in.Cmd)
	writeLP(h, in.Env)
	writeLP(h, []byte(in.Cwd))
	writeLP(h, []byte(in.Stdin))
	writeLP(h, in.HiddenInfo)

	if in.IsAtty {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	writeUint64(h, uint64(len(in.VisibleFiles)))
	for _, f := range in.VisibleFiles {
		writeLP(h, []byte(f.Path))
		writeLP(h, []byte(f.Hash))
	}

	var out Fingerprint
	copy(out[:], h.Sum(nil))
	return out
}

func writeUint64(h *blake3.Hasher, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeLP(h *blake3.Hasher, data []byte) {
	writeUint64(h, uint64(len(data)))
	h.Write(data)
}

// ParseFingerprint decodes a lowercase-hex fingerprint as stored on the wire.
func ParseFingerprint(s string) (Fingerprint, error) {
	var out Fingerprint
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, errFingerprintLength
	}
	copy(out[:], raw)
	return out, nil
}
