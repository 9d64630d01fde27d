package client

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// NewWatchCommand builds `mcd watch`, which streams dispatch notifications
// over SSE and prints each event line until interrupted.
func NewWatchCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream dispatch notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			lastEventID, _ := cmd.Flags().GetString("last-event-id")

			u := baseURL() + "/api/notifications"
			if filter != "" {
				u += "?filter=" + url.QueryEscape(filter)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Accept", "text/event-stream")
			if lastEventID != "" {
				req.Header.Set("Last-Event-ID", lastEventID)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("stream failed: %s", resp.Status)
			}

			sc := bufio.NewScanner(resp.Body)
			sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for sc.Scan() {
				line := sc.Text()
				if line == "" {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if err := sc.Err(); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("filter", "", "CEL filter expression applied server side")
	cmd.Flags().String("last-event-id", "", "Resume after this event sequence")
	return cmd
}
