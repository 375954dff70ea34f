package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/mandalart/internal/client"
	"github.com/pbaille/mandalart/internal/domain"
)

func habitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Manage habits and their commits",
	}
	cmd.AddCommand(habitListCmd())
	cmd.AddCommand(habitShowCmd())
	cmd.AddCommand(habitAddCmd())
	cmd.AddCommand(habitUpdateCmd())
	cmd.AddCommand(habitDeleteCmd())
	cmd.AddCommand(habitStatusCmd())
	cmd.AddCommand(habitCommitCmd())
	cmd.AddCommand(habitCommitsCmd())
	cmd.AddCommand(habitAttachCmd())
	return cmd
}

func printHabitLine(w io.Writer, h domain.Habit) {
	fmt.Fprintf(w, "%d  %-9s  combo %d/%d  %s\n", h.ID, h.Status, h.CurrentCombo, h.BestCombo, truncate(h.Title, 50))
}

func habitListCmd() *cobra.Command {
	var (
		epicID int64
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List habits",
		RunE: func(cmd *cobra.Command, args []string) error {
			var f client.HabitFilter
			if cmd.Flags().Changed("epic") {
				f.EpicID = &epicID
			}
			f.Status = domain.HabitStatus(status)

			habits, err := getClient().Habits.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			return render(habits, func(w io.Writer) {
				if len(habits) == 0 {
					fmt.Fprintln(w, "No habits found.")
					return
				}
				for _, h := range habits {
					printHabitLine(w, h)
				}
			})
		},
	}

	cmd.Flags().Int64VarP(&epicID, "epic", "e", 0, "only habits of this epic")
	cmd.Flags().StringVarP(&status, "status", "s", "", "only habits in this status")
	return cmd
}

func habitShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show habit details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			h, err := getClient().Habits.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			return render(h, func(w io.Writer) {
				fmt.Fprintf(w, "ID:          %d\n", h.ID)
				fmt.Fprintf(w, "Title:       %s\n", h.Title)
				fmt.Fprintf(w, "Status:      %s\n", h.Status)
				fmt.Fprintf(w, "Schedule:    %s\n", orDash(h.Schedule))
				fmt.Fprintf(w, "Target:      %d\n", h.TargetCount)
				if h.EpicID != nil {
					fmt.Fprintf(w, "Epic:        %d\n", *h.EpicID)
				}
				fmt.Fprintf(w, "Combo:       %d (best %d)\n", h.CurrentCombo, h.BestCombo)
				fmt.Fprintf(w, "Completions: %d\n", h.TotalCompletions)
				fmt.Fprintf(w, "Created:     %s\n", h.CreatedAt)
				if h.Description != nil {
					fmt.Fprintf(w, "\n%s\n", *h.Description)
				}
			})
		},
	}
}

func habitAddCmd() *cobra.Command {
	var (
		epicID      int64
		description string
		schedule    string
		target      int
	)

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a habit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := domain.HabitCreate{Title: strings.Join(args, " ")}
			flags := cmd.Flags()
			if flags.Changed("epic") {
				in.EpicID = &epicID
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("schedule") {
				in.Schedule = &schedule
			}
			if flags.Changed("target") {
				in.TargetCount = &target
			}

			h, err := getClient().Habits.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return render(h, func(w io.Writer) {
				fmt.Fprintf(w, "Added habit %d: %s\n", h.ID, h.Title)
			})
		},
	}

	cmd.Flags().Int64VarP(&epicID, "epic", "e", 0, "attach to this epic")
	cmd.Flags().StringVarP(&description, "description", "d", "", "habit description")
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron schedule, e.g. "0 9 * * *"`)
	cmd.Flags().IntVar(&target, "target", 1, "completions per period")
	return cmd
}

func habitUpdateCmd() *cobra.Command {
	var (
		title            string
		description      string
		clearDescription bool
		schedule         string
		clearSchedule    bool
		target           int
		status           string
		epicID           int64
		detach           bool
	)

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update fields of a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var u domain.HabitUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				u.Title = &title
			}
			switch {
			case clearDescription:
				u.Description = domain.Null[string]()
			case flags.Changed("description"):
				u.Description = domain.Some(description)
			}
			switch {
			case clearSchedule:
				u.Schedule = domain.Null[string]()
			case flags.Changed("schedule"):
				u.Schedule = domain.Some(schedule)
			}
			if flags.Changed("target") {
				u.TargetCount = &target
			}
			if flags.Changed("status") {
				s := domain.HabitStatus(status)
				u.Status = &s
			}
			switch {
			case detach && flags.Changed("epic"):
				return errors.New("--epic and --detach are exclusive")
			case detach:
				u.EpicID = domain.Null[int64]()
			case flags.Changed("epic"):
				u.EpicID = domain.Some(epicID)
			}

			h, err := getClient().Habits.Update(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			return render(h, func(w io.Writer) {
				fmt.Fprintf(w, "Updated habit %d: %s\n", h.ID, h.Title)
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().BoolVar(&clearDescription, "clear-description", false, "remove the description")
	cmd.Flags().StringVar(&schedule, "schedule", "", "new cron schedule")
	cmd.Flags().BoolVar(&clearSchedule, "clear-schedule", false, "remove the schedule")
	cmd.Flags().IntVar(&target, "target", 1, "completions per period")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().Int64VarP(&epicID, "epic", "e", 0, "attach to this epic")
	cmd.Flags().BoolVar(&detach, "detach", false, "detach from its epic")
	return cmd
}

func habitDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a habit and its commits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := getClient().Habits.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted habit %d\n", id)
			return nil
		},
	}
}

func habitStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "status [id] [status]",
		Short:     "Move a habit to another status",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"active", "paused", "completed", "archived"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			h, err := getClient().Habits.UpdateStatus(cmd.Context(), id, domain.HabitStatus(args[1]))
			if err != nil {
				return err
			}
			return render(h, func(w io.Writer) {
				fmt.Fprintf(w, "Habit %d is now %s\n", h.ID, h.Status)
			})
		},
	}
}

func habitCommitCmd() *cobra.Command {
	var (
		effort int
		note   string
	)

	cmd := &cobra.Command{
		Use:   "commit [habit-id]",
		Short: "Log effort against a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := domain.CommitCreate{Effort: effort}
			if note != "" {
				in.Description = &note
			}

			commit, err := getClient().Habits.CreateCommit(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return render(commit, func(w io.Writer) {
				fmt.Fprintf(w, "Committed effort %d to habit %d\n", commit.Effort, commit.HabitID)
			})
		},
	}

	cmd.Flags().IntVarP(&effort, "effort", "e", 3, "effort from 1 to 5")
	cmd.Flags().StringVarP(&note, "note", "n", "", "what was done")
	return cmd
}

func habitCommitsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "commits [habit-id]",
		Short: "List recent commits of a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			commits, err := getClient().Habits.ListCommits(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			return render(commits, func(w io.Writer) {
				if len(commits) == 0 {
					fmt.Fprintln(w, "No commits yet.")
					return
				}
				for _, c := range commits {
					fmt.Fprintf(w, "%s  effort %d  %s\n", c.CreatedAt, c.Effort, truncate(orDash(c.Description), 50))
				}
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", client.DefaultCommitLimit, "number of commits to show")
	return cmd
}

func habitAttachCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "attach [epic-id] [title]",
		Short: "Create a daily habit for an epic",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			epicID, err := parseID(args[0])
			if err != nil {
				return err
			}
			var desc *string
			if description != "" {
				desc = &description
			}

			h, err := getClient().Habits.CreateForEpic(cmd.Context(), epicID, strings.Join(args[1:], " "), desc)
			if err != nil {
				return err
			}
			return render(h, func(w io.Writer) {
				fmt.Fprintf(w, "Added habit %d to epic %d: %s (%s)\n", h.ID, epicID, h.Title, orDash(h.Schedule))
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "habit description")
	return cmd
}
