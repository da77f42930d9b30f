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

// handleVersionCheck serves GET /version/check?version=X (spec §4.9, §8.5):
// 200 if X begins with the accepted product prefix, 403 otherwise. No auth:
// a client needs to know whether it's compatible before it can authenticate.
func (a *RSCAPI) handleVersionCheck(w http.ResponseWriter, r *http.Request) {
	version := r.URL.Query().Get("version")
	if !strings.HasPrefix(version, rsc.AcceptedVersionPrefix) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
}
