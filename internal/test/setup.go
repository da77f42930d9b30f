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

package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/wake-rsc/internal/api"
	"github.com/sapcc/wake-rsc/internal/models"
	"github.com/sapcc/wake-rsc/internal/rsc"
	"github.com/sapcc/wake-rsc/internal/service"
	"github.com/sapcc/wake-rsc/internal/tasks"

	_ "github.com/sapcc/wake-rsc/internal/drivers/dbembedded"
	_ "github.com/sapcc/wake-rsc/internal/drivers/filesystem"
	_ "github.com/sapcc/wake-rsc/internal/drivers/trivial"
)

type setupParams struct {
	// all false/empty by default
	APIKeys               []string
	MaxConcurrentInserts  int
	MinCacheableRuntimeSec float64
}

// SetupOption is an option that can be given to NewSetup().
type SetupOption func(*setupParams)

// WithAPIKey is a SetupOption that inserts the given token into the ApiKey
// table, so requireAuth accepts it during the test.
func WithAPIKey(token string) SetupOption {
	return func(params *setupParams) {
		params.APIKeys = append(params.APIKeys, token)
	}
}

// WithMaxConcurrentInserts overrides the admission controller's load-shedding
// target (spec §4.7). The default (0) disables shedding entirely, so tests
// that don't care about C7's shed path get deterministic Accepted results.
func WithMaxConcurrentInserts(n int) SetupOption {
	return func(params *setupParams) {
		params.MaxConcurrentInserts = n
	}
}

// WithMinCacheableRuntime overrides the admission controller's minimum
// runtime threshold (spec §4.7), in seconds.
func WithMinCacheableRuntime(seconds float64) SetupOption {
	return func(params *setupParams) {
		params.MinCacheableRuntimeSec = seconds
	}
}

// Setup contains all the pieces that are needed for most tests: a real
// Postgres test database (migrated fresh per easypg's reset logic), an
// in-memory blob store, a deterministic Clock, and a fully wired HTTP
// handler identical in shape to what cmd/api/main.go builds.
type Setup struct {
	Config     rsc.Configuration
	DB         *rsc.DB
	Clock      *Clock
	Store      trivialStore
	SmallStore rsc.BlobStore
	Admission  *rsc.Admission
	Load       *rsc.LoadEstimate
	Service    *service.Service
	Janitor    *tasks.Janitor
	Handler    http.Handler
	Ctx        context.Context //nolint:containedctx // only used in tests
	Registry   *prometheus.Registry
}

// trivialStore is the interface subset of drivers/trivial.Store that test
// helpers poke at directly (e.g. BlobCount, ForbidPut).
type trivialStore interface {
	rsc.BlobStore
	BlobCount() int
}

// NewSetup prepares most or all pieces of the cache for a test: a migrated
// test database, an in-memory blob store as the active store, a distinct
// "db-embedded" store as the small-blob store, and an HTTP handler built the
// same way cmd/api wires production traffic.
func NewSetup(t *testing.T, opts ...SetupOption) Setup {
	t.Helper()
	logg.ShowDebug = osext.GetenvBool("RSC_DEBUG")

	var params setupParams
	for _, option := range opts {
		option(&params)
	}

	s := Setup{
		Config: rsc.Configuration{
			JobTTL:               rsc.Duration(30 * 24 * 3600 * 1e9),
			BlobGracePeriod:      rsc.Duration(24 * 3600 * 1e9),
			JobEvictionKind:      "ttl",
			MinCacheableRuntime:  rsc.Duration(params.MinCacheableRuntimeSec * 1e9),
			MaxConcurrentInserts: params.MaxConcurrentInserts,
		},
		Ctx:      t.Context(),
		Registry: prometheus.NewPedanticRegistry(),
	}

	sqlDB := easypg.ConnectForTest(t, easypg.Configuration{Migrations: rsc.SQLMigrations()},
		easypg.ClearTables("blob_stores", "blobs", "jobs", "output_files", "output_symlinks", "output_dirs", "job_uses", "job_history", "api_keys"),
	)
	s.DB = rsc.NewTestDB(sqlDB)

	s.Clock = &Clock{}
	s.Config.ActiveBlobStoreID = uuid.NewString()
	s.Config.SmallBlobStoreID = uuid.NewString()

	store, err := rsc.NewBlobStore("in-memory-for-testing", "")
	mustDo(t, err)
	s.Store = store.(trivialStore)
	mustDo(t, s.DB.Insert(&models.BlobStore{ID: s.Config.ActiveBlobStoreID, Kind: "in-memory-for-testing", Config: "", CreatedAt: s.Clock.Now()}))

	smallStore, err := rsc.NewBlobStore("db-embedded", "")
	mustDo(t, err)
	s.SmallStore = smallStore
	mustDo(t, s.DB.Insert(&models.BlobStore{ID: s.Config.SmallBlobStoreID, Kind: "db-embedded", Config: "", CreatedAt: s.Clock.Now()}))

	stores := func(storeID string) (rsc.BlobStore, error) {
		if storeID == s.Config.SmallBlobStoreID {
			return s.SmallStore, nil
		}
		return s.Store, nil
	}

	s.Load = &rsc.LoadEstimate{}
	s.Admission = rsc.NewAdmission(s.Config, s.Load, s.DB)
	s.Service = service.New(s.DB, stores, s.Config.ActiveBlobStoreID, s.Config.SmallBlobStoreID, s.Admission, s.Load)
	s.Service.TimeNow = s.Clock.Now

	for _, token := range params.APIKeys {
		mustDo(t, s.DB.Insert(&models.ApiKey{ID: uuid.NewString(), Key: token, Description: "test", CreatedAt: s.Clock.Now()}))
	}

	a := api.NewAPI(s.Service, s.DB).OverrideTimeNow(s.Clock.Now)
	s.Handler = api.Compose(a)

	s.Janitor = tasks.NewJanitor(s.Config, s.DB, stores).OverrideTimeNow(s.Clock.Now).DisableJitter()

	return s
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err.Error())
	}
}
