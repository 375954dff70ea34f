package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/mandalart/internal/domain"
	"github.com/pbaille/mandalart/internal/mandalart"
)

func epicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epic",
		Short: "Manage epics",
	}
	cmd.AddCommand(epicListCmd())
	cmd.AddCommand(epicShowCmd())
	cmd.AddCommand(epicAddCmd())
	cmd.AddCommand(epicUpdateCmd())
	cmd.AddCommand(epicDeleteCmd())
	cmd.AddCommand(epicPurgeCmd())
	return cmd
}

func printEpicTree(w io.Writer, e domain.Epic, indent int) {
	prefix := strings.Repeat("  ", indent)
	pos := ""
	if e.Position != nil {
		pos = " @" + e.Position.String()
	}
	fmt.Fprintf(w, "%s%d  %s%s\n", prefix, e.ID, truncate(e.Title, 60), pos)
	for _, sub := range e.Subs {
		printEpicTree(w, sub, indent+1)
	}
}

func epicListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List epics as a tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			epics, err := getClient().Epics.List(cmd.Context())
			if err != nil {
				return err
			}

			return render(epics, func(w io.Writer) {
				roots := mandalart.Roots(epics)
				if len(roots) == 0 {
					fmt.Fprintln(w, "No epics yet. Use 'mandalart epic add' to create one.")
					return
				}
				for _, root := range roots {
					printEpicTree(w, root, 0)
				}
			})
		},
	}
}

func epicShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show epic details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			epic, err := getClient().Epics.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			return render(epic, func(w io.Writer) {
				fmt.Fprintf(w, "ID:       %d\n", epic.ID)
				fmt.Fprintf(w, "Title:    %s\n", epic.Title)
				fmt.Fprintf(w, "Status:   %s\n", epic.Status)
				fmt.Fprintf(w, "Depth:    %d\n", epic.Depth)
				if epic.Position != nil {
					fmt.Fprintf(w, "Position: %s\n", epic.Position)
				}
				if epic.CoreEpicID != nil {
					fmt.Fprintf(w, "Parent:   %d\n", *epic.CoreEpicID)
				}
				fmt.Fprintf(w, "Created:  %s\n", epic.CreatedAt)
				fmt.Fprintf(w, "Updated:  %s\n", orDash(epic.UpdatedAt))
				if epic.Description != "" {
					fmt.Fprintf(w, "\n%s\n", epic.Description)
				}
				if len(epic.Subs) > 0 {
					fmt.Fprintf(w, "\nSubs:\n")
					for _, sub := range epic.Subs {
						printEpicTree(w, sub, 1)
					}
				}
			})
		},
	}
}

func epicAddCmd() *cobra.Command {
	var (
		description string
		status      string
		parent      int64
		position    string
	)

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create an epic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := domain.EpicCreate{
				Title:       strings.Join(args, " "),
				Description: description,
				Status:      status,
			}
			if cmd.Flags().Changed("parent") {
				in.CoreEpicID = &parent
			}
			if position != "" {
				p, err := domain.ParsePosition(position)
				if err != nil {
					return err
				}
				in.Position = &p
			}

			epic, err := getClient().Epics.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return render(epic, func(w io.Writer) {
				fmt.Fprintf(w, "Added epic %d: %s (depth %d)\n", epic.ID, epic.Title, epic.Depth)
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "epic description")
	cmd.Flags().StringVar(&status, "status", "active", "epic status")
	cmd.Flags().Int64VarP(&parent, "parent", "p", 0, "parent epic id")
	cmd.Flags().StringVar(&position, "position", "", `grid slot 0-8 or "row,col"`)
	return cmd
}

func epicUpdateCmd() *cobra.Command {
	var (
		title       string
		description string
		status      string
		parent      int64
		detach      bool
		position    string
	)

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update fields of an epic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var u domain.EpicUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				u.Title = &title
			}
			if flags.Changed("description") {
				u.Description = &description
			}
			if flags.Changed("status") {
				u.Status = &status
			}
			if flags.Changed("position") {
				p, err := domain.ParsePosition(position)
				if err != nil {
					return err
				}
				u.Position = &p
			}
			switch {
			case detach && flags.Changed("parent"):
				return errors.New("--parent and --detach are exclusive")
			case detach:
				u.CoreEpicID = domain.Null[int64]()
			case flags.Changed("parent"):
				u.CoreEpicID = domain.Some(parent)
			}

			epic, err := getClient().Epics.Update(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			return render(epic, func(w io.Writer) {
				fmt.Fprintf(w, "Updated epic %d: %s\n", epic.ID, epic.Title)
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().Int64VarP(&parent, "parent", "p", 0, "move under this epic")
	cmd.Flags().BoolVar(&detach, "detach", false, "make the epic top-level")
	cmd.Flags().StringVar(&position, "position", "", `grid slot 0-8 or "row,col"`)
	return cmd
}

func epicDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an epic and its subs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			epic, err := getClient().Epics.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(epic, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted epic %d: %s\n", epic.ID, epic.Title)
			})
		},
	}
}

func epicPurgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every epic",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all epics without --yes")
			}
			msg, err := getClient().Epics.DeleteAll(cmd.Context())
			if err != nil {
				return err
			}
			return render(msg, func(w io.Writer) {
				fmt.Fprintln(w, msg.Message)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}
