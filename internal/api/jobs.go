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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sapcc/wake-rsc/internal/rsc"
	"github.com/sapcc/wake-rsc/internal/service"
)

// handleInsertJob serves POST /job (spec §4.5, §4.9). Requires auth.
func (a *RSCAPI) handleInsertJob(w http.ResponseWriter, r *http.Request) {
	var payload service.JobInsertPayload
	if !a.decodeJSONBody(w, r, &payload) {
		return
	}

	jobID, err := a.Service.InsertJob(payload)
	switch {
	case errors.Is(err, rsc.ErrConflict):
		JobInsertsCounter.WithLabelValues("conflict").Inc()
		a.respondError(w, http.StatusConflict, err)
	case err != nil:
		JobInsertsCounter.WithLabelValues("error").Inc()
		a.respondError(w, http.StatusInternalServerError, err)
	default:
		JobInsertsCounter.WithLabelValues("accepted").Inc()
		respondJSON(w, http.StatusOK, map[string]string{"id": jobID})
	}
}

// handleLookupJob serves POST /job/matching (spec §4.6, §4.9). No auth.
func (a *RSCAPI) handleLookupJob(w http.ResponseWriter, r *http.Request) {
	var payload service.LookupPayload
	if !a.decodeJSONBody(w, r, &payload) {
		return
	}

	result, err := a.Service.LookupJob(payload)
	switch {
	case errors.Is(err, rsc.ErrNoMatch):
		JobLookupsCounter.WithLabelValues("miss").Inc()
		respondJSON(w, http.StatusNotFound, map[string]string{"type": "NoMatch"})
	case err != nil:
		a.respondError(w, http.StatusInternalServerError, err)
	default:
		JobLookupsCounter.WithLabelValues("hit").Inc()
		body := struct {
			Type string `json:"type"`
			*service.MatchResult
		}{Type: "Match", MatchResult: result}
		respondJSON(w, http.StatusOK, body)
	}
}

// handleAdmission serves POST /job/allow (spec §4.7, §4.9). Requires auth.
func (a *RSCAPI) handleAdmission(w http.ResponseWriter, r *http.Request) {
	var payload service.LookupPayload
	var req struct {
		service.LookupPayload
		Runtime float64 `json:"runtime"`
	}
	if !a.decodeJSONBody(w, r, &req) {
		return
	}
	payload = req.LookupPayload

	hash := rsc.ComputeFingerprint(payload.FingerprintInput())
	runtime := rsc.Duration(time.Duration(req.Runtime * float64(time.Second)))

	err := a.Service.CheckAdmission(runtime, hash)
	switch {
	case errors.Is(err, rsc.ErrRuntimeTooShort):
		a.respondError(w, http.StatusNotAcceptable, err)
	case errors.Is(err, rsc.ErrShed):
		a.respondError(w, http.StatusTooManyRequests, err)
	case errors.Is(err, rsc.ErrConflict):
		a.respondError(w, http.StatusConflict, err)
	case err != nil:
		a.respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, map[string]string{"type": "Ok"})
	}
}

func (a *RSCAPI) decodeJSONBody(w http.ResponseWriter, r *http.Request, target any) bool {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(target)
	if err != nil {
		a.respondError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}
