package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/procurehq/supplierscope/config"
	"github.com/procurehq/supplierscope/internal/discovery"
	srv "github.com/procurehq/supplierscope/internal/server"
)

// discoverCMD runs one discovery from the terminal and prints the fused
// record as JSON.
func discoverCMD() *cobra.Command {
	var cfgPath string
	var industry string
	var region string
	var website string
	var refresh bool
	var discover = &cobra.Command{
		Use:   "discover [name]",
		Short: "Discover and enrich one supplier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			eng, _, err := srv.BuildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			req := discovery.DiscoveryRequest{Name: args[0]}
			if industry != "" || region != "" || website != "" {
				req.Context = &discovery.RequestContext{
					Industry: industry,
					Region:   region,
					Website:  website,
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Discovery.RequestTimeout)
			defer cancel()
			var outcome *discovery.DiscoverOutcome
			if refresh {
				outcome, err = eng.Refresh(ctx, req)
			} else {
				outcome, err = eng.Discover(ctx, req)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcome); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "resolved in %v from %d sources (confidence %.2f)\n",
				outcome.Elapsed, len(outcome.Sources), outcome.Record.Confidence.Overall)
			return nil
		},
	}
	discover.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	discover.Flags().StringVar(&industry, "industry", "", "industry hint")
	discover.Flags().StringVar(&region, "region", "", "region hint")
	discover.Flags().StringVar(&website, "website", "", "known website")
	discover.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")

	return discover
}
