// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd implements the quicd command-line entrypoint.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

var (
	version   = "dev"
	gitHash   = "none"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "quicd",
	Short: "QUIC/HTTP3/QPACK transport engine",
	Long: `quicd drives the QUIC transport state machine (packet
protection, loss detection, congestion control, stream multiplexing)
and the HTTP/3 + QPACK layers built on top of it.`,
	Version: fmt.Sprintf("%s (%s, built %s)", version, gitHash, buildTime),
}

// Execute runs the root command, exiting the process on error. maxprocs
// is set first so GOMAXPROCS respects a container's cgroup CPU quota
// rather than the host's full core count, before any worker pool spins
// up and reads runtime.GOMAXPROCS.
func Execute() {
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to set GOMAXPROCS: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
