// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/config"
)

// newTestRoot mounts sub under a root carrying the real persistent flags,
// with the environment and XDG lookups isolated from the host.
func newTestRoot(t *testing.T, sub *cobra.Command, stdin string, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("REDIS_URL", "")
	configFile = ""
	t.Cleanup(func() { configFile = "" })

	root := &cobra.Command{Use: "authd", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(sub)

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	return root, buf
}
