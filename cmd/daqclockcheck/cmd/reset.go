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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/daqclock/daemon"
)

var (
	resetEndpointFlag  bool
	resetDependentFlag bool
)

func init() {
	RootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVarP(&resetEndpointFlag, "endpoint", "e", false, "soft-reset endpoint peer only")
	resetCmd.Flags().BoolVarP(&resetDependentFlag, "dependent", "D", false, "force dependent clock relock")
	resetCmd.MarkFlagsMutuallyExclusive("endpoint", "dependent")
}

func resetKind(endpoint, dependent bool) string {
	switch {
	case endpoint:
		return daemon.ResetEndpoint
	case dependent:
		return daemon.ResetDependent
	default:
		return daemon.ResetHard
	}
}

func resetRun(c *daemon.Client, kind string) error {
	if err := c.Reset(kind); err != nil {
		return fmt.Errorf("sending %s reset: %w", kind, err)
	}
	fmt.Printf("%s reset requested\n", kind)
	return nil
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset timing core. Hard reset restarts local counter and selects local source",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := resetRun(newClient(), resetKind(resetEndpointFlag, resetDependentFlag)); err != nil {
			log.Fatal(err)
		}
	},
}
