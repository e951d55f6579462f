package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rezkam/dayplan/internal/application/auth"
)

type apiKeyOptions struct {
	Owner string
	Name  string
	Days  int
}

func addAPIKey(topLevel *cobra.Command, v *viper.Viper) {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	o := &apiKeyOptions{}
	create := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key for an owner. The key is shown once.",
		Example: `
dayplanctl apikey create --owner alice --name "alice laptop"
dayplanctl apikey create --owner alice --name ci --days 30
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			backend, err := openBackend(ctx, v)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			req := auth.IssueRequest{OwnerID: o.Owner, Name: o.Name}
			if o.Days > 0 {
				expiry := time.Now().UTC().AddDate(0, 0, o.Days)
				req.ExpiresAt = &expiry
			}

			key, err := auth.IssueAPIKey(ctx, backend, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			_, _ = bold.Fprintln(out, key)
			if req.ExpiresAt != nil {
				_, _ = fmt.Fprintf(out, "expires %s\n", req.ExpiresAt.Format(time.RFC3339))
			}
			_, _ = color.New(color.Faint, color.Italic).Fprintln(out, "Store this key now; it cannot be shown again.")
			return nil
		},
	}
	create.Flags().StringVar(&o.Owner, "owner", "", "owner the key authenticates as (required)")
	create.Flags().StringVar(&o.Name, "name", "", "name to recognise the key by (required)")
	create.Flags().IntVar(&o.Days, "days", 0, "days until the key expires, 0 never expires")
	_ = create.MarkFlagRequired("owner")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	topLevel.AddCommand(cmd)
}
