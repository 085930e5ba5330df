// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/holomush/authd/internal/rpc"
	"github.com/holomush/authd/internal/tls"
)

// ServiceStatus is the result of one health probe.
type ServiceStatus struct {
	Address string `json:"address"`
	Service string `json:"service"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	caFile     string
	serverName string
	timeout    time.Duration
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	return newStatusCmdWithDeps(nil)
}

func newStatusCmdWithDeps(deps *StatusDeps) *cobra.Command {
	if deps == nil {
		deps = &StatusDeps{}
	}
	if deps.ClientFactory == nil {
		deps.ClientFactory = func(cfg rpc.ClientConfig) (HealthChecker, error) {
			c, err := rpc.NewClient(cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	cfg := &statusConfig{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the health of a running authd",
		Long: `Query the gRPC health service of a running authd. Exits non-zero
unless the auth service reports SERVING.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, deps)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "server address (default: localhost and the configured port)")
	cmd.Flags().StringVar(&cfg.caFile, "ca", "", "CA certificate PEM; enables TLS")
	cmd.Flags().StringVar(&cfg.serverName, "server-name", "", "TLS server name override")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "probe timeout")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig, deps *StatusDeps) error {
	addr := cfg.addr
	if addr == "" {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr = net.JoinHostPort("localhost", strconv.Itoa(loaded.Port))
	}

	var clientTLS *cryptotls.Config
	if cfg.caFile != "" {
		var err error
		clientTLS, err = tls.LoadClientTLS(cfg.caFile, cfg.serverName)
		if err != nil {
			return err
		}
	}

	client, err := deps.ClientFactory(rpc.ClientConfig{Address: addr, TLSConfig: clientTLS})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	result := ServiceStatus{Address: addr, Service: rpc.ServiceName}
	st, checkErr := client.Check(ctx, rpc.ServiceName)
	result.Status = st.String()
	if checkErr != nil {
		result.Status = "UNREACHABLE"
		result.Error = checkErr.Error()
	}

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return oops.Wrap(err)
		}
		cmd.Println(string(out))
	} else {
		cmd.Printf("%s %s: %s\n", result.Address, result.Service, result.Status)
		if result.Error != "" {
			cmd.Printf("  error: %s\n", result.Error)
		}
	}

	if checkErr != nil {
		return oops.Code("STATUS_UNREACHABLE").With("address", addr).Wrap(checkErr)
	}
	if st != healthpb.HealthCheckResponse_SERVING {
		return oops.Code("STATUS_NOT_SERVING").With("address", addr).With("status", result.Status).Errorf("service is not serving")
	}
	return nil
}
