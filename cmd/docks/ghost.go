package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newGhostCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ghost",
		Short: "List swarm containers that belong to no instance",
		Long: `List the containers running on the environment's docks whose ID no
instance document references, with counts per owner and for the default
docks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.registry.Ghosts.Report(cmd.Context(), a.env)
			if err != nil {
				return err
			}
			if a.output != "table" && a.output != "" {
				return a.render(report, nil, nil)
			}

			rows := make([][]string, 0, len(report.Ghosts))
			for _, c := range report.Ghosts {
				rows = append(rows, []string{shortID(c.ID), dash(c.Owner), dash(c.DockIP), dash(c.Org), dash(c.DockType), dash(c.Status)})
			}
			if err := a.render(report, []string{"CONTAINER", "OWNER", "DOCK", "ORG", "DOCK TYPE", "STATUS"}, rows); err != nil {
				return err
			}

			rows = rows[:0]
			for _, o := range report.Owners {
				rows = append(rows, []string{dash(o.Owner), strconv.Itoa(o.Total), strconv.Itoa(o.Ghosts), strconv.Itoa(o.Real()), percent(o.Ghosts, o.Total)})
			}
			fmt.Fprintln(a.out)
			if err := a.render(report, []string{"OWNER", "TOTAL", "GHOST", "REAL", "GHOST %"}, rows); err != nil {
				return err
			}

			ghosts := len(report.Ghosts)
			stats := []struct {
				name  string
				count int
			}{
				{"All", report.Total},
				{"Ghost", ghosts},
				{"Real", report.Total - ghosts},
				{"All Default", report.DefaultTotal},
				{"Default Ghost", report.DefaultGhosts},
				{"Default Real", report.DefaultTotal - report.DefaultGhosts},
			}
			rows = rows[:0]
			for _, s := range stats {
				rows = append(rows, []string{s.name, strconv.Itoa(s.count), percent(s.count, report.Total)})
			}
			fmt.Fprintln(a.out)
			return a.render(report, []string{"TYPE", "COUNT", "OF ALL"}, rows)
		},
	}
}

func percent(n, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(n)/float64(total)*100)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
