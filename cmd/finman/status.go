// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/finman/finman/internal/config"
)

// ServerStatus holds the probe results for a running server.
type ServerStatus struct {
	Addr  string `json:"addr"`
	Live  bool   `json:"live"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running finman server",
		Long:  `Query the health probes of a running finman server over its metrics listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runStatus(cmd, cfg.Metrics.Addr, jsonOutput)
		},
	}

	cmd.Flags().String("metrics.addr", config.DefaultMetricsAddr, "metrics/health HTTP address to query")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, addr string, jsonOutput bool) error {
	status := queryServerStatus(addr)

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ADDR\tLIVE\tREADY")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", status.Addr, yesNo(status.Live), yesNo(status.Ready))
	if status.Error != "" {
		_, _ = fmt.Fprintf(w, "error: %s\n", status.Error)
	}
	_ = w.Flush()
	cmd.Print(string(buf))
	return nil
}

// queryServerStatus probes the liveness and readiness endpoints.
func queryServerStatus(addr string) ServerStatus {
	status := ServerStatus{Addr: addr}
	client := &http.Client{Timeout: 2 * time.Second}

	live, err := probe(client, "http://"+addr+"/healthz/liveness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Live = live

	ready, err := probe(client, "http://"+addr+"/healthz/readiness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Ready = ready

	return status
}

func probe(client *http.Client, url string) (bool, error) {
	resp, err := client.Get(url)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
