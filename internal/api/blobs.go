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

package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/wake-rsc/internal/service"
)

// smallBlobContentType is the content-type marker that routes a multipart
// part to the "db-embedded" store kind instead of the active store (spec
// §4.4, §9: "observed but its stability across client versions is not
// documented" -- treated here as a fixed constant since no alternative is
// specified).
const smallBlobContentType = "blob/small"

// handleUploadURL serves GET /blob (spec §4.9): "Return the upload URL". No
// auth: advertising where to upload does not itself grant write access, the
// subsequent POST /blob still requires a valid API key.
func (a *RSCAPI) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"upload_url": "/blob"})
}

// handleBlobIngest serves POST /blob (spec §4.4, §4.9): a multipart body
// with any number of named parts, each streamed through the blob store
// chosen by its declared content type. On any part's error the whole
// request aborts; already-persisted parts are not rolled back (spec §4.4) --
// they become orphan candidates that the eviction engine reclaims after the
// grace period.
func (a *RSCAPI) handleBlobIngest(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err)
		return
	}

	var uploaded []service.BlobUploaded
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"type": "Error", "message": err.Error()})
			return
		}

		storeID := a.Service.ActiveStoreID
		if strings.HasPrefix(part.Header.Get("Content-Type"), smallBlobContentType) {
			storeID = a.Service.SmallStoreID
		}

		blobID, err := a.Service.IngestBlob(storeID, part)
		closeErr := part.Close()
		if err != nil {
			respondJSON(w, http.StatusBadGateway, map[string]string{"type": "Error", "message": err.Error()})
			return
		}
		if closeErr != nil {
			logg.Error("could not close multipart part %q: %s", part.FormName(), closeErr.Error())
		}

		BlobsIngestedCounter.WithLabelValues(storeID).Inc()
		uploaded = append(uploaded, service.BlobUploaded{ID: blobID, Name: part.FormName()})
	}

	respondJSON(w, http.StatusOK, map[string]any{"type": "Ok", "blobs": uploaded})
}
