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
	"net/http"

	"github.com/sapcc/go-bits/logg"
)

// dashboardStats is the body of GET /dashboard (spec §4.9, §4.10:
// "Aggregated stats (peripheral)"). Counters default to zero when
// job_history holds no rows yet rather than failing the request.
type dashboardStats struct {
	JobCount       int64 `json:"job_count"`
	BlobCount      int64 `json:"blob_count"`
	Hits           int64 `json:"hits"`
	Misses         int64 `json:"misses"`
	Evictions      int64 `json:"evictions"`
	Shed           int64 `json:"shed"`
	Denied         int64 `json:"denied"`
	Conflicts      int64 `json:"conflicts"`
	CurrentInserts int   `json:"current_inserts"`
}

// handleDashboard serves GET /dashboard. It is read-only and best-effort: a
// failure to compute one figure does not block the others, since this route
// exists for operators, not for cache correctness.
func (a *RSCAPI) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats := dashboardStats{}

	if n, err := a.DB.SelectInt(`SELECT COUNT(*) FROM jobs`); err == nil {
		stats.JobCount = n
	} else {
		logg.Error("dashboard: could not count jobs: %s", err.Error())
	}
	if n, err := a.DB.SelectInt(`SELECT COUNT(*) FROM blobs`); err == nil {
		stats.BlobCount = n
	} else {
		logg.Error("dashboard: could not count blobs: %s", err.Error())
	}
	if n, err := a.DB.SelectInt(`SELECT COALESCE(SUM(hits), 0) FROM job_history`); err == nil {
		stats.Hits = n
	} else {
		logg.Error("dashboard: could not sum hits: %s", err.Error())
	}
	if n, err := a.DB.SelectInt(`SELECT COALESCE(SUM(misses), 0) FROM job_history`); err == nil {
		stats.Misses = n
	} else {
		logg.Error("dashboard: could not sum misses: %s", err.Error())
	}
	if n, err := a.DB.SelectInt(`SELECT COALESCE(SUM(evictions), 0) FROM job_history`); err == nil {
		stats.Evictions = n
	} else {
		logg.Error("dashboard: could not sum evictions: %s", err.Error())
	}
	if n, err := a.DB.SelectInt(`SELECT COALESCE(SUM(shed), 0) FROM job_history`); err == nil {
		stats.Shed = n
	} else {
		logg.Error("dashboard: could not sum shed: %s", err.Error())
	}
	if n, err := a.DB.SelectInt(`SELECT COALESCE(SUM(denied), 0) FROM job_history`); err == nil {
		stats.Denied = n
	} else {
		logg.Error("dashboard: could not sum denied: %s", err.Error())
	}
	if n, err := a.DB.SelectInt(`SELECT COALESCE(SUM(conflict), 0) FROM job_history`); err == nil {
		stats.Conflicts = n
	} else {
		logg.Error("dashboard: could not sum conflicts: %s", err.Error())
	}
	if a.Service.Load != nil {
		stats.CurrentInserts = a.Service.Load.Get()
	}

	respondJSON(w, http.StatusOK, stats)
}
