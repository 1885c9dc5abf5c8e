/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/daqclock/daemon"
)

// RootCmd is a main entry point. It's exported so daqclockcheck could be easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "daqclockcheck",
	Short: "Inspect and control daqclock timing core",
}

// flags
var (
	rootVerboseFlag bool
	rootDaemonFlag  string
	rootTimeoutFlag time.Duration
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().StringVarP(&rootDaemonFlag, "daemon", "d", "http://localhost:2958", "daqclock-daemon control API address")
	RootCmd.PersistentFlags().DurationVarP(&rootTimeoutFlag, "timeout", "t", 2*time.Second, "request timeout")
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Needs to be called by any subcommand.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

func newClient() *daemon.Client {
	return daemon.NewClient(rootDaemonFlag, rootTimeoutFlag)
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
