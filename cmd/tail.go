/*
Copyright 2024 serialmux Authors

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
	"bufio"
	"fmt"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// tailCmd is the CLI terminal client collaborator (spec.md §1): it dials a
// running server's websocket endpoint and relays bytes between the
// connection and the local terminal, the Go counterpart of the original
// webmux-cli binary. It does not attempt raw-mode terminal editing.
var tailCmd = &cobra.Command{
	Use:   "tail <server-addr> <connection-name>",
	Short: "Stream a connection's bytes over websocket and relay stdin to it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, name := args[0], args[1]

		u := url.URL{Scheme: "ws", Host: addr, Path: fmt.Sprintf("/api/connections/%s/ws", name)}
		conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", u.String(), err)
		}
		defer conn.Close()

		readErr := make(chan error, 1)
		go func() {
			for {
				msgType, data, err := conn.ReadMessage()
				if err != nil {
					readErr <- err
					return
				}
				if msgType == websocket.BinaryMessage || msgType == websocket.TextMessage {
					os.Stdout.Write(data)
				}
			}
		}()

		writeErr := make(chan error, 1)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := append(scanner.Bytes(), '\n')
				if err := conn.WriteMessage(websocket.BinaryMessage, line); err != nil {
					writeErr <- err
					return
				}
			}
			writeErr <- scanner.Err()
		}()

		select {
		case err := <-readErr:
			return err
		case err := <-writeErr:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
}
