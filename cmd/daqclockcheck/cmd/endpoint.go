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
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/daqclock/endpoint"
)

var (
	endpointPortFlag       int
	endpointAddressFlag    string
	endpointJSONFlag       bool
	endpointJSONPrefixFlag string
	endpointResetFlag      bool
)

func init() {
	RootCmd.AddCommand(endpointCmd)
	endpointCmd.Flags().StringVarP(&endpointAddressFlag, "address", "a", "127.0.0.1", "address to connect to")
	endpointCmd.Flags().IntVarP(&endpointPortFlag, "port", "p", endpoint.MonitoringPort, "port to connect to")
	endpointCmd.Flags().BoolVarP(&endpointJSONFlag, "json", "j", false, "JSON output")
	endpointCmd.Flags().StringVarP(&endpointJSONPrefixFlag, "prefix", "r", "daqclock.endpoint", "JSON prefix")
	endpointCmd.Flags().BoolVar(&endpointResetFlag, "reset", false, "soft-reset the peer directly")
}

func printEndpoint(status *endpoint.Status) {
	fmt.Println("Endpoint:")
	fmt.Printf("\tready: %s\n", boolStatus(status.Ready))
	fmt.Printf("\tstatus: %s (0x%x)\n", status.Status, uint8(status.Status))
	fmt.Printf("\ttimestamp: %d\n", status.Timestamp)
	fmt.Printf("\tloss_of_signal: %v\n", status.LossOfSignal)
}

func endpointRun(address string, jsonOut, reset bool) error {
	timeout := 1 * time.Second
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("connecting to endpoint: %w", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(timeout)
	if err = conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("setting connection deadline: %w", err)
	}

	if reset {
		if _, err := endpoint.RequestReset(conn); err != nil {
			return err
		}
		log.Info("endpoint soft reset requested")
	}
	status, err := endpoint.ReadStatus(conn)
	if err != nil {
		return err
	}

	if jsonOut {
		toPrint, err := status.MonitoringJSON(endpointJSONPrefixFlag)
		fmt.Println(string(toPrint))
		return err
	}

	printEndpoint(status)
	return nil
}

var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Print status reported by timing endpoint peer",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		address := net.JoinHostPort(endpointAddressFlag, fmt.Sprint(endpointPortFlag))
		if err := endpointRun(address, endpointJSONFlag, endpointResetFlag); err != nil {
			log.Fatal(err)
		}
	},
}
