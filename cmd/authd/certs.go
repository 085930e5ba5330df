// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/tls"
	"github.com/holomush/authd/internal/xdg"
)

// NewCertsCmd creates the certs subcommand.
func NewCertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Manage TLS certificates",
	}

	var (
		dir   string
		hosts []string
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a server certificate, creating a CA if none exists",
		Long: `Generate server.crt and server.key signed by root-ca.crt in the certs
directory. An existing CA is reused so clients keep trusting it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				d, err := xdg.CertsDir()
				if err != nil {
					return err
				}
				dir = d
			}
			return generateCerts(cmd, dir, hosts)
		},
	}
	generate.Flags().StringVar(&dir, "dir", "", "certs directory (default: XDG_CONFIG_HOME/authd/certs)")
	generate.Flags().StringSliceVar(&hosts, "host", nil, "DNS name or IP for the server certificate (repeatable)")
	cmd.AddCommand(generate)

	return cmd
}

func generateCerts(cmd *cobra.Command, dir string, hosts []string) error {
	if err := xdg.EnsureDir(dir); err != nil {
		return err
	}

	// Any existing CA file means a CA is expected; a broken one is an error
	// rather than a silent replacement.
	var ca *tls.CA
	var err error
	if fileExists(filepath.Join(dir, tls.CAFile)) || fileExists(filepath.Join(dir, tls.CAKeyFile)) {
		if ca, err = tls.LoadCA(dir); err != nil {
			return err
		}
		cmd.Println("Reusing CA in", dir)
	} else {
		if ca, err = tls.GenerateCA(); err != nil {
			return err
		}
		cmd.Println("Generated new CA")
	}

	serverCert, err := tls.GenerateServerCert(ca, tls.ServerName, hosts)
	if err != nil {
		return err
	}
	if err := tls.SaveCertificates(dir, ca, serverCert); err != nil {
		return err
	}

	cmd.Println("Wrote", filepath.Join(dir, tls.ServerName+".crt"))
	cmd.Println("Wrote", filepath.Join(dir, tls.ServerName+".key"))
	cmd.Println("Clients should trust", filepath.Join(dir, tls.CAFile))
	return nil
}

// fileExists reports whether path exists. Permission errors count as
// existing so that unreadable files are never overwritten.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
