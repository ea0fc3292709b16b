// Command replicactl is a minimal operator CLI against a running replica's
// status HTTP server: status, health and add-neighbour only. It is deliberately
// not a generic wrapper around read/operation, which is out of scope for
// this engine (see internal/statusapi).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var addr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "replicactl",
		Short: "Operator CLI for a delta-crdt replica",
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:8080", "replica status server address")

	rootCmd.AddCommand(statusCmd(), healthCmd(), addNeighbourCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the replica's sequence, neighbour and ack counters",
		Run: func(cmd *cobra.Command, args []string) {
			resp, err := http.Get(addr + "/status")
			if err != nil {
				log.Fatalf("failed to reach replica: %v", err)
			}
			defer resp.Body.Close()
			printJSON(resp.Body)
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check replica liveness",
		Run: func(cmd *cobra.Command, args []string) {
			resp, err := http.Get(addr + "/healthz")
			if err != nil {
				log.Fatalf("failed to reach replica: %v", err)
			}
			defer resp.Body.Close()
			printJSON(resp.Body)
		},
	}
}

func addNeighbourCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-neighbour [endpoint]",
		Short: "Register a neighbour endpoint with the replica",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			body, err := json.Marshal(map[string]string{"endpoint": args[0]})
			if err != nil {
				log.Fatalf("failed to encode request: %v", err)
			}

			resp, err := http.Post(addr+"/neighbours", "application/json", bytes.NewReader(body))
			if err != nil {
				log.Fatalf("failed to reach replica: %v", err)
			}
			defer resp.Body.Close()
			printJSON(resp.Body)
		},
	}
}

func printJSON(r io.Reader) {
	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		log.Fatalf("failed to decode response: %v", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal: %v", err)
	}
	fmt.Println(string(out))
}
