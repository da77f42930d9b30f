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
	"strings"

	"github.com/sapcc/wake-rsc/internal/rsc"
)

// requireAuth extracts the Authorization header and checks it against the
// ApiKey table (spec §4.9: "extracts the Authorization header, looks up the
// exact token in ApiKey, rejects with 401 on any failure").
func (a *RSCAPI) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			a.respondError(w, http.StatusUnauthorized, rsc.ErrUnauthorized)
			return
		}

		count, err := a.DB.SelectInt(`SELECT COUNT(*) FROM api_keys WHERE key = $1`, token)
		if err != nil {
			a.respondError(w, http.StatusInternalServerError, err)
			return
		}
		if count == 0 {
			a.respondError(w, http.StatusUnauthorized, rsc.ErrUnauthorized)
			return
		}

		next(w, r)
	}
}

// handleAuthCheck serves POST /auth/check (spec §4.9): liveness + auth
// probe. By the time this handler runs, requireAuth has already validated
// the token, so there is nothing left to do but confirm the database is
// reachable.
func (a *RSCAPI) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	_, err := a.DB.SelectInt(`SELECT 1`)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"type": "Ok"})
}
