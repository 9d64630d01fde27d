package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loekd/MissionCriticalDemo/internal/messages"
)

// NewSubmitCommand builds `mcd submit`, which posts a flow request to the
// dispatch API.
func NewSubmitCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a gas flow request",
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, _ := cmd.Flags().GetString("direction")
			amount, _ := cmd.Flags().GetInt("amount")
			customer, _ := cmd.Flags().GetString("customer")

			customerID, err := uuid.Parse(customer)
			if err != nil {
				return fmt.Errorf("malformed --customer: %w", err)
			}
			req := messages.Request{
				RequestID:   uuid.New(),
				CustomerID:  customerID,
				Direction:   messages.FlowDirection(direction),
				AmountInGWh: amount,
				Timestamp:   time.Now().UTC(),
			}
			if err := req.Validate(); err != nil {
				return err
			}
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}

			resp, err := http.Post(baseURL()+"/api/dispatch", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			out, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusAccepted {
				return fmt.Errorf("dispatch rejected request: %s: %s", resp.Status, bytes.TrimSpace(out))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s", out)
			return nil
		},
	}
	cmd.Flags().String("direction", "inject", "Flow direction: inject|withdraw")
	cmd.Flags().Int("amount", 1, "Amount in GWh (exclusive bounds 0..100)")
	cmd.Flags().String("customer", "", "Customer id (UUID)")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}
