package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/infrastructure/ics"
)

type exportOptions struct {
	Owner string
	From  string
	To    string
	File  string
}

func addExport(topLevel *cobra.Command, v *viper.Viper) {
	o := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an owner's items in a date range as iCalendar.",
		Example: `
dayplanctl export --owner alice --from 2024-07-01 --to 2024-07-31 --file july.ics
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDay("from", o.From)
			if err != nil {
				return err
			}
			to, err := parseDay("to", o.To)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			backend, err := openBackend(ctx, v)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			loc, err := location(v)
			if err != nil {
				return err
			}
			svc := planner.NewService(backend, nil, nil, planner.Config{Location: loc})

			items, err := svc.ItemsBetween(ctx, o.Owner, from, to)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if o.File != "" {
				f, err := os.Create(o.File)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", o.File, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			if err := ics.Write(w, items, ics.Options{Location: loc}); err != nil {
				return err
			}
			if o.File != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d items to %s\n", len(items), o.File)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&o.Owner, "owner", "", "owner whose items to export (required)")
	cmd.Flags().StringVar(&o.From, "from", "", "first day as YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&o.To, "to", "", "last day as YYYY-MM-DD (required)")
	cmd.Flags().StringVarP(&o.File, "file", "f", "", "write to this file instead of stdout")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	topLevel.AddCommand(cmd)
}
