/******************************************************************************
*
*  Copyright 2024 SAP SE
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

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/sre"
)

var (
	//JobLookupsCounter counts POST /job/matching requests, by outcome.
	JobLookupsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsc_job_lookups",
			Help: "Counts job lookups, by whether they hit or missed.",
		},
		[]string{"outcome"},
	)
	//JobInsertsCounter counts POST /job requests, by outcome.
	JobInsertsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsc_job_inserts",
			Help: "Counts job insertion attempts, by outcome.",
		},
		[]string{"outcome"},
	)
	//BlobsIngestedCounter counts blob parts accepted through POST /blob.
	BlobsIngestedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rsc_blobs_ingested",
			Help: "Counts blob parts ingested through the service frontend.",
		},
		[]string{"store_id"},
	)
)

var (
	//same buckets the reference bootstrap uses: a request/response probably
	//fits inside a single ethernet frame or jumboframe, respectively
	httpDurationBuckets = []float64{0.025, 0.1, 0.25, 1, 2.5}
	httpBodySizeBuckets = []float64{1024, 8192, 1000000, 10000000}
)

func init() {
	prometheus.MustRegister(JobLookupsCounter)
	prometheus.MustRegister(JobInsertsCounter)
	prometheus.MustRegister(BlobsIngestedCounter)

	sre.Init(sre.Config{
		AppName:                  "wake-rsc",
		FirstByteDurationBuckets: httpDurationBuckets,
		ResponseDurationBuckets:  httpDurationBuckets,
		RequestBodySizeBuckets:   httpBodySizeBuckets,
		ResponseBodySizeBuckets:  httpBodySizeBuckets,
	})
}
