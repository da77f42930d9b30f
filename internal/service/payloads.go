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

// Package service implements the business logic behind the service
// frontend's routes (spec §4.4-§4.7, §4.10): blob ingest, job insert, job
// lookup and the history aggregator, all built directly atop internal/rsc
// and internal/models.
package service

import "github.com/sapcc/wake-rsc/internal/rsc"

// VisibleFile mirrors the wire form of rsc.VisibleFile.
type VisibleFile struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// OutputDirPayload is one entry of JobInsertPayload.OutputDirs.
type OutputDirPayload struct {
	Path   string `json:"path"`
	Mode   int    `json:"mode"`
	Hidden bool   `json:"hidden,omitempty"`
}

// OutputSymlinkPayload is one entry of JobInsertPayload.OutputSymlinks.
type OutputSymlinkPayload struct {
	Path string `json:"path"`
	Link string `json:"link"`
}

// OutputFilePayload is one entry of JobInsertPayload.OutputFiles.
type OutputFilePayload struct {
	Path   string `json:"path"`
	Mode   int    `json:"mode"`
	BlobID string `json:"blob_id"`
}

// LookupPayload is the fingerprint-participating subset of a job (spec §6:
// "Lookup payload"). cmd, env and hidden_info are transmitted as
// base64-encoded strings, which Go's encoding/json produces for a []byte
// field. On decoding, encoding/json also accepts a JSON array of numbers
// for these fields; no check here rejects that form.
type LookupPayload struct {
	Cmd          []byte        `json:"cmd"`
	Env          []byte        `json:"env"`
	Cwd          string        `json:"cwd"`
	Stdin        string        `json:"stdin"`
	IsAtty       bool          `json:"is_atty"`
	HiddenInfo   []byte        `json:"hidden_info"`
	VisibleFiles []VisibleFile `json:"visible_files"`
}

// FingerprintInput reduces a LookupPayload to the subset ComputeFingerprint
// hashes, so insertion and lookup agree bit-exactly (spec §4.1).
func (p LookupPayload) FingerprintInput() rsc.FingerprintInput {
	files := make([]rsc.VisibleFile, len(p.VisibleFiles))
	for i, f := range p.VisibleFiles {
		files[i] = rsc.VisibleFile{Path: f.Path, Hash: f.Hash}
	}
	return rsc.FingerprintInput{
		Cmd:          p.Cmd,
		Env:          p.Env,
		Cwd:          p.Cwd,
		Stdin:        p.Stdin,
		HiddenInfo:   p.HiddenInfo,
		IsAtty:       p.IsAtty,
		VisibleFiles: files,
	}
}

// JobInsertPayload is the full job insertion payload (spec §6). Unknown
// fields are ignored by encoding/json by default; Label is optional for
// backward compatibility, per spec.
type JobInsertPayload struct {
	Cmd            []byte                 `json:"cmd"`
	Env            []byte                 `json:"env"`
	Cwd            string                 `json:"cwd"`
	Stdin          string                 `json:"stdin"`
	IsAtty         bool                   `json:"is_atty"`
	HiddenInfo     []byte                 `json:"hidden_info"`
	VisibleFiles   []VisibleFile          `json:"visible_files"`
	OutputDirs     []OutputDirPayload     `json:"output_dirs"`
	OutputSymlinks []OutputSymlinkPayload `json:"output_symlinks"`
	OutputFiles    []OutputFilePayload    `json:"output_files"`
	StdoutBlobID   string                 `json:"stdout_blob_id"`
	StderrBlobID   string                 `json:"stderr_blob_id"`
	Status         int                    `json:"status"`
	Runtime        float64                `json:"runtime"`
	Cputime        float64                `json:"cputime"`
	Memory         uint64                 `json:"memory"`
	IBytes         uint64                 `json:"ibytes"`
	OBytes         uint64                 `json:"obytes"`
	Label          string                 `json:"label,omitempty"`
}

func (p JobInsertPayload) lookupPayload() LookupPayload {
	return LookupPayload{
		Cmd:          p.Cmd,
		Env:          p.Env,
		Cwd:          p.Cwd,
		Stdin:        p.Stdin,
		IsAtty:       p.IsAtty,
		HiddenInfo:   p.HiddenInfo,
		VisibleFiles: p.VisibleFiles,
	}
}

func (p JobInsertPayload) fingerprintInput() rsc.FingerprintInput {
	return p.lookupPayload().FingerprintInput()
}

// BlobRef is the {id, url} pair attached to resolved blob references in a
// MatchResult.
type BlobRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// MatchOutputFile is one entry of MatchResult.OutputFiles.
type MatchOutputFile struct {
	Path string  `json:"path"`
	Mode int     `json:"mode"`
	Blob BlobRef `json:"blob"`
}

// MatchResult is the body of a successful lookup (spec §6: "Match" payload).
type MatchResult struct {
	OutputSymlinks []OutputSymlinkPayload `json:"output_symlinks"`
	OutputDirs     []OutputDirPayload     `json:"output_dirs"`
	OutputFiles    []MatchOutputFile      `json:"output_files"`
	StdoutBlob     BlobRef                `json:"stdout_blob"`
	StderrBlob     BlobRef                `json:"stderr_blob"`
	Status         int                    `json:"status"`
	Runtime        float64                `json:"runtime"`
	Cputime        float64                `json:"cputime"`
	Memory         uint64                 `json:"memory"`
	IBytes         uint64                 `json:"ibytes"`
	OBytes         uint64                 `json:"obytes"`
}

// BlobUploaded is one entry of the blob upload response's "blobs" array
// (spec §6).
type BlobUploaded struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
