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
	"net/http"
	"testing"

	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/wake-rsc/internal/test"
)

func TestDashboardReportsZeroesOnEmptyDatabase(t *testing.T) {
	s := test.NewSetup(t)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/dashboard",
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{
			"job_count":       float64(0),
			"blob_count":      float64(0),
			"hits":            float64(0),
			"misses":          float64(0),
			"evictions":       float64(0),
			"shed":            float64(0),
			"denied":          float64(0),
			"conflicts":       float64(0),
			"current_inserts": float64(0),
		},
	}.Check(t, s.Handler)
}

func TestDashboardCountsInsertedJob(t *testing.T) {
	s := test.NewSetup(t, test.WithAPIKey("test-token"))

	assert.HTTPRequest{
		Method: "POST",
		Path:   "/job",
		Header: map[string]string{"Authorization": "Bearer test-token"},
		Body:   assert.JSONObject{"cmd": "Z2NjIGEuYw==", "status": 0},
		ExpectStatus: http.StatusOK,
	}.Check(t, s.Handler)

	assert.HTTPRequest{
		Method:       "GET",
		Path:         "/dashboard",
		ExpectStatus: http.StatusOK,
		ExpectBody: assert.JSONObject{
			"job_count":       float64(1),
			"blob_count":      float64(0),
			"hits":            float64(0),
			"misses":          float64(0),
			"evictions":       float64(0),
			"shed":            float64(0),
			"denied":          float64(0),
			"conflicts":       float64(0),
			"current_inserts": float64(0),
		},
	}.Check(t, s.Handler)
}
