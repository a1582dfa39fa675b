package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benmeehan/docks/pkg/dryrun"
	"gopkg.in/yaml.v3"
)

// render prints v in the selected output format. Tables are built from
// header and rows.
func (a *app) render(v any, header []string, rows [][]string) error {
	switch a.output {
	case "json":
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// report prints the outcome of a guarded action.
func report[R any](a *app, res dryrun.Result[R]) {
	if !res.Performed {
		fmt.Fprintf(a.out, "Dry run: would %s\n", res.Description)
		return
	}
	fmt.Fprintf(a.out, "Done: %s (%s)\n", res.Description, res.Elapsed.Round(time.Millisecond))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
