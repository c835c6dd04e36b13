package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <id> <url>",
		Short: "Connect as an observer and print each received line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, target := args[0], args[1]

			u, err := url.Parse(target)
			if err != nil {
				return fmt.Errorf("log: invalid url: %w", err)
			}
			switch u.Scheme {
			case "http":
				u.Scheme = "ws"
			case "https":
				u.Scheme = "wss"
			case "ws", "wss":
			default:
				return fmt.Errorf("log: unsupported scheme %q", u.Scheme)
			}
			if !strings.HasSuffix(u.Path, "/log-trace") {
				u.Path = strings.TrimSuffix(u.Path, "/") + "/log-trace"
			}
			q := u.Query()
			q.Set("id", id)
			u.RawQuery = q.Encode()

			conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
			if err != nil {
				return fmt.Errorf("log: connect failed: %w", err)
			}
			defer conn.Close()

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return fmt.Errorf("log: transport error: %w", err)
				}
				fmt.Println(string(msg))
			}
		},
	}
}
