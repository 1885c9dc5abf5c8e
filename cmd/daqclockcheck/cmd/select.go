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
	"github.com/facebook/daqclock/timing"
)

func init() {
	RootCmd.AddCommand(selectCmd)
}

func selectRun(c *daemon.Client, name string) error {
	src, err := timing.ParseSource(name)
	if err != nil {
		return err
	}
	if err := c.Select(src); err != nil {
		return fmt.Errorf("selecting %s: %w", src, err)
	}
	fmt.Printf("%s selected, check status for switch progress\n", src)
	return nil
}

var selectCmd = &cobra.Command{
	Use:       "select <local|endpoint>",
	Short:     "Select clock and timestamp source",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{timing.SourceLocal.String(), timing.SourceEndpoint.String()},
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := selectRun(newClient(), args[0]); err != nil {
			log.Fatal(err)
		}
	},
}
