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

// Package rsctoolcmd is a minimal stand-in for the upstream rsc_tool
// administrative CLI (SPEC_FULL.md "SUPPLEMENTED FEATURES"). spec.md places
// the full admin tool out of scope as an external collaborator, so this only
// covers enough of the BlobStore read path to be useful from an operator's
// shell: listing which stores are configured and how many blobs/bytes each
// one currently holds.
package rsctoolcmd

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/sapcc/go-bits/must"
	"github.com/spf13/cobra"

	"github.com/sapcc/wake-rsc/internal/rsc"
)

// AddCommandTo mounts this command into the command hierarchy.
func AddCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "blob-stores",
		Short: "Inspect configured blob stores.",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all configured blob stores with their blob count and total size.",
		Args:  cobra.NoArgs,
		Run:   runList,
	})
	parent.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	cfg := rsc.ParseConfiguration()

	dbURL := must.Return(url.Parse(cfg.DatabaseURL))
	db := must.Return(rsc.InitDB(*dbURL))

	type row struct {
		ID        string
		Kind      string
		Config    string
		BlobCount int64
		TotalSize int64
	}
	var rows []row
	must.Succeed(rsc.ForeachRow(db, `
		SELECT bs.id, bs.kind, bs.config,
		       COUNT(b.id) AS blob_count,
		       COALESCE(SUM(b.size_bytes), 0) AS total_size
		FROM blob_stores bs
		LEFT JOIN blobs b ON b.store_id = bs.id
		GROUP BY bs.id, bs.kind, bs.config
		ORDER BY bs.created_at
	`, nil, func(r *sql.Rows) error {
		var rr row
		if err := r.Scan(&rr.ID, &rr.Kind, &rr.Config, &rr.BlobCount, &rr.TotalSize); err != nil {
			return err
		}
		rows = append(rows, rr)
		return nil
	}))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tCONFIG\tBLOBS\tBYTES")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", r.ID, r.Kind, r.Config, r.BlobCount, r.TotalSize)
	}
	must.Succeed(w.Flush())
}
