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

package api_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/wake-rsc/internal/drivers/trivial"
	"github.com/sapcc/wake-rsc/internal/models"
	"github.com/sapcc/wake-rsc/internal/test"
)

func TestUploadURLReturnsBlobPath(t *testing.T) {
	s := test.NewSetup(t)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/blob",
		ExpectStatus: http.StatusOK,
		ExpectBody:   assert.JSONObject{"upload_url": "/blob"},
	}.Check(t, s.Handler)
}

func TestBlobIngestRequiresAuth(t *testing.T) {
	s := test.NewSetup(t)

	assert.HTTPRequest{
		Method:       "POST",
		Path:         "/blob",
		ExpectStatus: http.StatusUnauthorized,
		ExpectBody:   test.ErrorMessage("missing or invalid API key"),
	}.Check(t, s.Handler)
}

// multipartBody is assert.HTTPRequest's RequestJSON/Body cannot express a
// multipart form, so POST /blob is exercised directly with net/http/httptest
// instead, matching how the handler itself reads r.MultipartReader().
func multipartBody(t *testing.T, parts map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range parts {
		part, err := w.CreateFormFile(name, name)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %s", err.Error())
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("could not write multipart content: %s", err.Error())
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close multipart writer: %s", err.Error())
	}
	return &buf, w.FormDataContentType()
}

func TestBlobIngestStoresEachPart(t *testing.T) {
	s := test.NewSetup(t, test.WithAPIKey("test-token"))

	body, contentType := multipartBody(t, map[string]string{
		"stdout": "hello stdout",
		"stderr": "hello stderr",
	})

	req := httptest.NewRequest(http.MethodPost, "/blob", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer test-token")

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Type  string `json:"type"`
		Blobs []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"blobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("could not decode response: %s", err.Error())
	}
	if resp.Type != "Ok" {
		t.Errorf("expected type \"Ok\", got %q", resp.Type)
	}
	if len(resp.Blobs) != 2 {
		t.Fatalf("expected 2 uploaded blobs, got %d", len(resp.Blobs))
	}
	if s.Store.BlobCount() != 2 {
		t.Errorf("expected 2 blobs stored in the backing store, got %d", s.Store.BlobCount())
	}
}

// multipartBodyWithContentType builds a single-part multipart body whose
// part carries an explicit Content-Type header, since multipart.Writer's
// CreateFormFile always hardcodes "application/octet-stream" and the
// "blob/small" routing marker (spec §4.4) can only be set via CreatePart.
func multipartBodyWithContentType(t *testing.T, name, content, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+name+`"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart failed: %s", err.Error())
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("could not write multipart content: %s", err.Error())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close multipart writer: %s", err.Error())
	}
	return &buf, w.FormDataContentType()
}

func TestBlobIngestRoutesSmallContentTypeToSmallStore(t *testing.T) {
	s := test.NewSetup(t, test.WithAPIKey("test-token"))

	body, contentType := multipartBodyWithContentType(t, "stdout", "tiny", "blob/small")

	req := httptest.NewRequest(http.MethodPost, "/blob", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer test-token")

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Type  string `json:"type"`
		Blobs []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"blobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("could not decode response: %s", err.Error())
	}
	if len(resp.Blobs) != 1 {
		t.Fatalf("expected 1 uploaded blob, got %d", len(resp.Blobs))
	}

	var blob models.Blob
	if err := s.DB.SelectOne(&blob, `SELECT * FROM blobs WHERE id = $1`, resp.Blobs[0].ID); err != nil {
		t.Fatalf("could not load blob row: %s", err.Error())
	}
	if blob.StoreID != s.Config.SmallBlobStoreID {
		t.Errorf("expected blob routed to small store %q, got store %q", s.Config.SmallBlobStoreID, blob.StoreID)
	}
	if s.Store.BlobCount() != 0 {
		t.Errorf("expected the active store to stay empty, got %d blobs", s.Store.BlobCount())
	}
}

func TestBlobIngestFailsWhenStoreRejectsPut(t *testing.T) {
	s := test.NewSetup(t, test.WithAPIKey("test-token"))
	s.Store.(*trivial.Store).ForbidPut = true

	body, contentType := multipartBody(t, map[string]string{"stdout": "hello"})

	req := httptest.NewRequest(http.MethodPost, "/blob", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer test-token")

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}
