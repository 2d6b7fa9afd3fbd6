package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskboard/taskboard-go/internal/api"
	"github.com/taskboard/taskboard-go/internal/cache"
	"github.com/taskboard/taskboard-go/internal/config"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Work with tasks",
	}

	cmd.AddCommand(newTasksListCmd())
	cmd.AddCommand(newTasksCreateCmd())
	cmd.AddCommand(newTasksStatusCmd())
	cmd.AddCommand(newTasksRmCmd())

	return cmd
}

func newTasksListCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTasksList(cmd.Context(), offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "list from the local cache without contacting the server")

	return cmd
}

func newTasksCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksCreate(cmd.Context(), args[0], description)
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "task description")

	return cmd
}

func newTasksStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <todo|in-progress|review|done>",
		Short: "Move a task to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksStatus(cmd.Context(), args[0], args[1])
		},
	}
}

func newTasksRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasksRm(cmd.Context(), args[0])
		},
	}
}

func runTasksList(ctx context.Context, offline bool) error {
	a := buildApp()

	store, err := cache.Open(config.DefaultCachePath(), a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if offline {
		tasks, fetchedAt, cacheErr := store.Tasks(ctx)
		if cacheErr != nil {
			return cacheErr
		}

		if len(tasks) > 0 {
			statusf("Showing cached tasks (fetched %s).\n", formatAge(fetchedAt))
		}

		return printTasks(tasks)
	}

	tasks, err := a.api.Tasks(ctx)
	if err != nil {
		return err
	}

	if cacheErr := store.ReplaceAll(ctx, tasks, time.Now()); cacheErr != nil {
		// Cache write failure must not fail the listing.
		a.logger.Warn("updating task cache failed", "error", cacheErr)
	}

	return printTasks(tasks)
}

func runTasksCreate(ctx context.Context, title, description string) error {
	a := buildApp()

	task, err := a.api.CreateTask(ctx, title, description)
	if err != nil {
		return err
	}

	statusf("Created task %s.\n", task.ID)

	return nil
}

func runTasksStatus(ctx context.Context, id, status string) error {
	switch status {
	case api.StatusTodo, api.StatusInProgress, api.StatusReview, api.StatusDone:
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	a := buildApp()

	task, err := a.api.UpdateTaskStatus(ctx, id, status)
	if err != nil {
		return err
	}

	statusf("Task %s is now %s.\n", task.ID, task.Status)

	return nil
}

func runTasksRm(ctx context.Context, id string) error {
	a := buildApp()

	deleted, err := a.api.DeleteTask(ctx, id)
	if err != nil {
		return err
	}

	if !deleted {
		return fmt.Errorf("task %s was not deleted", id)
	}

	statusf("Deleted task %s.\n", id)

	return nil
}

func printTasks(tasks []*api.Task) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(tasks)
	}

	if len(tasks) == 0 {
		statusf("No tasks.\n")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	if stdoutIsTTY() {
		fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tTITLE\tASSIGNED\tUPDATED")
	}

	for _, t := range tasks {
		assigned := "-"
		if t.AssignedTo != nil {
			assigned = t.AssignedTo.DisplayName
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Status, t.Priority, t.Title, assigned, formatTime(t.UpdatedAt))
	}

	return w.Flush()
}
