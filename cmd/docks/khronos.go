package main

import (
	"fmt"
	"strconv"

	"github.com/benmeehan/docks/internal/services"
	"github.com/spf13/cobra"
)

func newKhronosCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "khronos [task]",
		Short: "Enqueue a khronos maintenance task",
		Long: `Enqueue one of the khronos maintenance tasks. The task is given by its
number or its queue name; --list shows the available tasks.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list || len(args) == 0 {
				rows := make([][]string, 0, len(services.KhronosTasks))
				for i, task := range services.KhronosTasks {
					rows = append(rows, []string{strconv.Itoa(i + 1), task.Queue, task.Description})
				}
				return a.render(services.KhronosTasks, []string{"#", "QUEUE", "DESCRIPTION"}, rows)
			}

			task, ok := services.FindKhronosTask(args[0])
			if !ok {
				return fmt.Errorf("unknown khronos task %q", args[0])
			}
			if err := a.confirm(fmt.Sprintf("Are you sure you wish to enqueue %q?", task.Description), "Aborted khronos task"); err != nil {
				return err
			}
			res, err := a.registry.Jobs.PublishKhronos(cmd.Context(), a.env, task, a.dry)
			if err != nil {
				return err
			}
			report(a, res)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List the available tasks")
	return cmd
}
