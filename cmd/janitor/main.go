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

package janitorcmd

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dlmiddlecote/sqlstats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapcc/go-bits/httpee"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/must"
	"github.com/spf13/cobra"

	"github.com/sapcc/wake-rsc/internal/api"
	"github.com/sapcc/wake-rsc/internal/rsc"
	"github.com/sapcc/wake-rsc/internal/tasks"

	// include all known blob store driver implementations
	_ "github.com/sapcc/wake-rsc/internal/drivers/dbembedded"
	_ "github.com/sapcc/wake-rsc/internal/drivers/filesystem"
	_ "github.com/sapcc/wake-rsc/internal/drivers/trivial"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Run the rsc-janitor background scheduler component.",
		Long:  "Run the rsc-janitor background scheduler component (spec §4.11). Configuration is read from WAKE_RSC_CONFIG_* environment variables and an optional JSON config file (path in RSC_CONFIG_PATH, default .config).",
		Args:  cobra.NoArgs,
		Run:   run,
	}
	parent.AddCommand(cmd)
}

func run(cmd *cobra.Command, args []string) {
	rsc.Component = "rsc-janitor"
	logg.Info("starting rsc-janitor %s", rsc.Version)

	cfg := rsc.ParseConfiguration()

	dbURL := must.Return(url.Parse(cfg.DatabaseURL))
	db := must.Return(rsc.InitDB(*dbURL))

	prometheus.MustRegister(sqlstats.NewStatsCollector("rsc", db.DbMap.Db))

	stores := rsc.NewStoreResolver(db)
	janitor := tasks.NewJanitor(cfg, db, stores)

	ctx := httpee.ContextWithSIGINT(context.Background())

	//start background task loops (spec §4.8, §4.11); each Job blocks the
	//goroutine it's given, polling for expired jobs/orphaned blobs and
	//backing off on sql.ErrNoRows exactly like jobloop's other consumers.
	registerer := prometheus.DefaultRegisterer
	go janitor.JobEvictionJob(registerer).Run(ctx)
	go janitor.BlobEvictionJob(registerer).Run(ctx)

	//start HTTP server for Prometheus metrics and health check
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/healthcheck", api.HealthCheckHandler)
	listenAddress := cfg.ListenAddress
	logg.Info("listening on " + listenAddress)
	err := httpee.ListenAndServeContext(ctx, listenAddress, nil)
	if err != nil {
		logg.Fatal("error returned from httpee.ListenAndServeContext(): %s", err.Error())
	}
}
