package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/domain"
)

// Output formats.
const (
	outputTable = "table"
	outputYAML  = "yaml"
)

type agendaOptions struct {
	Owner  string
	Date   string
	Output string
}

func addAgenda(topLevel *cobra.Command, v *viper.Viper) {
	o := &agendaOptions{}

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print an owner's agenda and statistics for one day.",
		Example: `
dayplanctl agenda --owner alice
dayplanctl agenda --owner alice --date 2024-07-01 --output yaml
`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch o.Output {
			case outputTable, outputYAML:
				return nil
			default:
				return fmt.Errorf("unknown output %q, expected %s or %s", o.Output, outputTable, outputYAML)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
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

			date := svc.Today()
			if o.Date != "" {
				if date, err = domain.ParseDate(o.Date); err != nil {
					return err
				}
			}

			view, err := svc.Agenda(ctx, o.Owner, date)
			if err != nil {
				return err
			}

			if o.Output == outputYAML {
				return printAgendaYAML(cmd.OutOrStdout(), view)
			}
			printAgendaTable(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.Owner, "owner", "", "owner whose agenda to print (required)")
	cmd.Flags().StringVar(&o.Date, "date", "", "day to print as YYYY-MM-DD, defaults to today")
	cmd.Flags().StringVarP(&o.Output, "output", "o", outputTable, "output format: table or yaml")
	_ = cmd.MarkFlagRequired("owner")

	topLevel.AddCommand(cmd)
}

func statusColor(status domain.Status) *color.Color {
	switch status {
	case domain.StatusCompleted:
		return color.New(color.FgGreen)
	case domain.StatusInProgress:
		return color.New(color.FgYellow)
	case domain.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.Faint)
	}
}

func clockLabel(item domain.Item) string {
	switch {
	case item.AllDay:
		return "all day"
	case item.Time.IsZero():
		return "-"
	default:
		return item.Time.String()
	}
}

func printAgendaTable(w io.Writer, view *planner.DayView) {
	bold := color.New(color.Bold, color.Underline)
	_, _ = bold.Fprintln(w, view.Date.String())

	if len(view.Entries) == 0 {
		_, _ = color.New(color.Faint, color.Italic).Fprint(w, " none\n\n")
	} else {
		tbl := uitable.New()
		tbl.Separator = "  "
		tbl.MaxColWidth = 60
		tbl.AddRow("#", "TIME", "KIND", "STATUS", "TITLE")
		for i, e := range view.Entries {
			tbl.AddRow(strconv.Itoa(i+1), clockLabel(e.Item), string(e.Item.Kind),
				statusColor(e.Status).Sprint(string(e.Status)), e.Item.Title)
		}
		tbl.RightAlign(0)
		_, _ = fmt.Fprintln(w, tbl)
		_, _ = fmt.Fprintln(w)
	}

	s := view.Stats
	_, _ = color.New(color.Faint).Fprintf(w, "%d total, %d completed, %d in progress, %d pending, %d failed\n",
		s.Total, s.Completed, s.InProgress, s.Pending, s.Failed)
}

type agendaDoc struct {
	Date  string      `yaml:"date"`
	Items []agendaRow `yaml:"items"`
	Stats statsDoc    `yaml:"stats"`
}

type agendaRow struct {
	ID     string `yaml:"id"`
	Kind   string `yaml:"kind"`
	Title  string `yaml:"title"`
	Time   string `yaml:"time,omitempty"`
	AllDay bool   `yaml:"all_day,omitempty"`
	Status string `yaml:"status"`
}

type statsDoc struct {
	Completed  int `yaml:"completed"`
	InProgress int `yaml:"in_progress"`
	Pending    int `yaml:"pending"`
	Failed     int `yaml:"failed"`
	Total      int `yaml:"total"`
}

func printAgendaYAML(w io.Writer, view *planner.DayView) error {
	doc := agendaDoc{
		Date:  view.Date.String(),
		Items: make([]agendaRow, 0, len(view.Entries)),
		Stats: statsDoc{
			Completed:  view.Stats.Completed,
			InProgress: view.Stats.InProgress,
			Pending:    view.Stats.Pending,
			Failed:     view.Stats.Failed,
			Total:      view.Stats.Total,
		},
	}
	for _, e := range view.Entries {
		doc.Items = append(doc.Items, agendaRow{
			ID:     e.Item.ID,
			Kind:   string(e.Item.Kind),
			Title:  e.Item.Title,
			Time:   e.Item.Time.String(),
			AllDay: e.Item.AllDay,
			Status: string(e.Status),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode agenda: %w", err)
	}
	return enc.Close()
}

// parseDay parses a required YYYY-MM-DD flag.
func parseDay(flag, value string) (domain.Date, error) {
	d, err := domain.ParseDate(value)
	if err != nil {
		return "", fmt.Errorf("--%s: %w", flag, err)
	}
	return d, nil
}
