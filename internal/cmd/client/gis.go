package client

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

// NewGasInStoreCommand builds `mcd gis`, which reads gas-in-store views from
// the dispatch API.
func NewGasInStoreCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gis",
		Short: "Read gas in store",
		RunE: func(cmd *cobra.Command, args []string) error {
			overall, _ := cmd.Flags().GetBool("overall")
			max, _ := cmd.Flags().GetBool("max")
			customer, _ := cmd.Flags().GetString("customer")

			var path string
			switch {
			case overall:
				path = "/api/gasinstore/overall"
			case max:
				path = "/api/gasinstore/maxfilllevel"
			default:
				if customer == "" {
					return fmt.Errorf("pass --customer, --overall, or --max")
				}
				path = "/api/gasinstore"
			}

			req, err := http.NewRequest(http.MethodGet, baseURL()+path, nil)
			if err != nil {
				return err
			}
			if path == "/api/gasinstore" {
				req.Header.Set("X-Customer-Id", customer)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			out, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("read failed: %s: %s", resp.Status, out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s", out)
			return nil
		},
	}
	cmd.Flags().String("customer", "", "Customer id (UUID)")
	cmd.Flags().Bool("overall", false, "Read the cached overall fill level")
	cmd.Flags().Bool("max", false, "Read the cached maximum fill level")
	return cmd
}
