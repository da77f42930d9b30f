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

// Package api implements the cache's service frontend (spec §4.9): HTTP
// routing, the auth middleware, and JSON request/response handling for the
// operations in internal/service.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/wake-rsc/internal/rsc"
	"github.com/sapcc/wake-rsc/internal/service"
)

// RSCAPI serves the cache's HTTP routes (spec §4.9's route table). It
// implements the api.API interface so it composes with api.Compose exactly
// like every other API in this package family.
type RSCAPI struct {
	Service *service.Service
	DB      *rsc.DB
	TimeNow func() time.Time
}

// NewAPI creates an RSCAPI.
func NewAPI(svc *service.Service, db *rsc.DB) *RSCAPI {
	return &RSCAPI{Service: svc, DB: db, TimeNow: time.Now}
}

// OverrideTimeNow replaces time.Now with a test double.
func (a *RSCAPI) OverrideTimeNow(timeNow func() time.Time) *RSCAPI {
	a.TimeNow = timeNow
	return a
}

// AddTo implements the api.API interface.
func (a *RSCAPI) AddTo(r *mux.Router) {
	r.Methods("POST").Path("/job").HandlerFunc(a.requireAuth(a.handleInsertJob))
	r.Methods("POST").Path("/job/matching").HandlerFunc(a.handleLookupJob)
	r.Methods("POST").Path("/job/allow").HandlerFunc(a.requireAuth(a.handleAdmission))
	r.Methods("GET").Path("/blob").HandlerFunc(a.handleUploadURL)
	r.Methods("POST").Path("/blob").HandlerFunc(a.requireAuth(a.handleBlobIngest))
	r.Methods("POST").Path("/auth/check").HandlerFunc(a.requireAuth(a.handleAuthCheck))
	r.Methods("GET").Path("/version/check").HandlerFunc(a.handleVersionCheck)
	r.Methods("GET").Path("/dashboard").HandlerFunc(a.handleDashboard)
}

// HealthCheckHandler serves GET /healthcheck: a plain-text liveness probe
// for the process supervisor, independent of the DB-backed /auth/check.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if r.URL.Path == "/healthcheck" && r.Method == http.MethodGet {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	} else {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found")) //nolint:errcheck
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		logg.Error("could not encode JSON response: %s", err.Error())
	}
}

// respondError writes the {"error": "..."} envelope that most non-2xx
// responses use (spec §7). Lookup misses, blob ingest failures and version
// rejections write other bodies.
func (a *RSCAPI) respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
