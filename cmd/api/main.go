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

package apicmd

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dlmiddlecote/sqlstats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sapcc/go-bits/httpee"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/spf13/cobra"

	"github.com/sapcc/wake-rsc/internal/api"
	"github.com/sapcc/wake-rsc/internal/rsc"
	"github.com/sapcc/wake-rsc/internal/service"

	// include all known blob store driver implementations
	_ "github.com/sapcc/wake-rsc/internal/drivers/dbembedded"
	_ "github.com/sapcc/wake-rsc/internal/drivers/filesystem"
	_ "github.com/sapcc/wake-rsc/internal/drivers/trivial"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the rsc-api server component.",
		Long:  "Run the rsc-api server component. Configuration is read from WAKE_RSC_CONFIG_* environment variables and an optional JSON config file (path in RSC_CONFIG_PATH, default .config).",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	rsc.Component = "rsc-api"
	logg.Info("starting rsc-api %s", rsc.Version)

	cfg := rsc.ParseConfiguration()

	dbURL := must.Return(url.Parse(cfg.DatabaseURL))
	db := must.Return(rsc.InitDB(*dbURL))

	prometheus.MustRegister(sqlstats.NewStatsCollector("rsc", db.DbMap.Db))

	stores := rsc.NewStoreResolver(db)
	if _, err := db.GetBlobStore(cfg.ActiveBlobStoreID); err != nil {
		logg.Fatal("%s: %s", rsc.ErrActiveStoreNotFound.Error(), err.Error())
	}

	load := &rsc.LoadEstimate{}
	admission := rsc.NewAdmission(cfg, load, db)
	svc := service.New(db, stores, cfg.ActiveBlobStoreID, cfg.SmallBlobStoreID, admission, load)

	ctx := httpee.ContextWithSIGINT(context.Background())

	//wire up HTTP handlers
	handler := api.Compose(api.NewAPI(svc, db))
	handler = logg.Middleware{}.Wrap(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(handler)
	http.Handle("/", handler)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/healthcheck", api.HealthCheckHandler)

	//start HTTP server
	listenAddress := cfg.ListenAddress
	logg.Info("listening on " + listenAddress)
	err := httpee.ListenAndServeContext(ctx, listenAddress, nil)
	if err != nil {
		logg.Fatal("error returned from httpee.ListenAndServeContext(): %s", err.Error())
	}
}
