/******************************************************************************
*
*  Copyright 2019 SAP SE
*
*  Licensed under the Apache License, Version 2.0 (the "License");
*  you may not use this file except in compliance with the License.
*  You may obtain a copy of the License at
*
*      http://www.apache.org/licenses/LICENSE-2.0
*
*  Unless required by applicable law or agreed to in writing, software
*  distributed under the License is distributed on an "AS IS" BASIS,
*  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
*  See the License for the specific language governing permissions and
*  limitations under the License.
*
******************************************************************************/

package test

import (
	"encoding/json"
	"testing"
)

// ErrorMessage wraps an expected error string with an implementation of the
// assert.HTTPResponseBody interface, matching the {"error": "..."} envelope
// that most non-2xx responses from the cache's service frontend use (spec
// §4.9, §7).
type ErrorMessage string

// AssertResponseBody implements the assert.HTTPResponseBody interface.
func (e ErrorMessage) AssertResponseBody(t *testing.T, requestInfo string, responseBody []byte) bool {
	t.Helper()
	var data struct {
		Error string `json:"error"`
	}
	err := json.Unmarshal(responseBody, &data)
	if err != nil {
		t.Errorf("%s: cannot decode JSON: %s", requestInfo, err.Error())
		t.Logf("\tresponse body = %q", string(responseBody))
		return false
	}

	if data.Error != string(e) {
		t.Errorf("%s: got unexpected error", requestInfo)
		t.Logf("\texpected = %q\n", string(e))
		t.Logf("\tactual = %q\n", data.Error)
		return false
	}
	return true
}
