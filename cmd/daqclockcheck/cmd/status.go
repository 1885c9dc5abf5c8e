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
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/daqclock/daemon"
	"github.com/facebook/daqclock/timing"
)

var statusJSONFlag bool

func init() {
	RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusJSONFlag, "json", "j", false, "JSON output")
}

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

func boolStatus(b bool) string {
	if b {
		return okString
	}
	return failString
}

func stateStatus(s timing.State) string {
	if s == timing.StateStable {
		return okString
	}
	return warnString
}

func lockRow(name string, l timing.LockStatus) []string {
	return []string{name, l.Domain.String(), fmt.Sprintf("%v", l.Locked), fmt.Sprintf("0x%x", l.Code), boolStatus(l.Locked)}
}

func printStatus(r *daemon.StatusResponse) {
	st := r.Status
	fmt.Printf("tick: %d\n", st.Tick)
	fmt.Printf("timestamp: %d\n", st.Timestamp)
	if st.Provisional {
		fmt.Printf("provisional: %s\n", color.YellowString("%v", st.Provisional))
	}
	fmt.Printf("ready: %s\n", boolStatus(st.Ready))
	fmt.Printf("controller: %s %s(%s), selected %s\n", stateStatus(st.State), st.State, st.Target, st.Selected)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("clock", "domain", "locked", "code", "status")
	table.Append(lockRow("master", st.Master))
	table.Append(lockRow("dependent", st.Dependent))
	table.Append(lockRow("endpoint", st.Endpoint))
	table.Render()

	if st.LossOfSignal {
		fmt.Printf("upstream: %s loss of signal\n", failString)
	}
	if r.Quality != nil {
		fmt.Printf("quality: class %s (%d), availability %.2f%% over %d ticks\n",
			r.Quality.Class, r.Quality.Class, r.Quality.Availability*100, r.Quality.Samples)
	}
	if r.Error != "" {
		fmt.Printf("errors: %s\n", color.RedString(r.Error))
	}
}

func statusRun(c *daemon.Client, jsonOut bool) error {
	r, err := c.Status()
	if err != nil {
		return fmt.Errorf("getting status from daemon: %w", err)
	}
	if jsonOut {
		toPrint, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Println(string(toPrint))
		return nil
	}
	printStatus(r)
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print timing core status",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := statusRun(newClient(), statusJSONFlag); err != nil {
			log.Fatal(err)
		}
	},
}
