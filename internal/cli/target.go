package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultkeep/vaultkeep/internal/target"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage registered backup targets",
}

var (
	targetAddPriority string
	targetAddCategory string
	targetAddExcludes []string
)

var targetAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register a directory or file as a backup target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := targetRegistry()
		if err != nil {
			return err
		}

		priority, err := target.ParsePriority(targetAddPriority)
		if err != nil {
			return err
		}

		t := target.Target{
			Path:            args[0],
			Priority:        priority,
			Category:        targetAddCategory,
			CreatedAt:       time.Now().UTC(),
			ExcludePatterns: targetAddExcludes,
		}
		if err := reg.Add(t); err != nil {
			return err
		}
		fmt.Printf("registered target %s (priority=%s)\n", args[0], priority)
		return nil
	},
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered backup targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := targetRegistry()
		if err != nil {
			return err
		}
		targets, err := reg.List()
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Println("no targets registered")
			return nil
		}
		for _, t := range targets {
			excludes := ""
			if len(t.ExcludePatterns) > 0 {
				excludes = " excludes=" + strings.Join(t.ExcludePatterns, ",")
			}
			fmt.Printf("%-10s %-10s %s%s\n", t.Priority, t.CategoryOrDefault(), t.Path, excludes)
		}
		return nil
	},
}

var targetRemoveCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Unregister a backup target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := targetRegistry()
		if err != nil {
			return err
		}
		canonical, err := (target.Target{Path: args[0], Priority: target.PriorityMedium}).Validate()
		if err != nil {
			return err
		}
		if err := reg.Remove(canonical); err != nil {
			return err
		}
		fmt.Printf("removed target %s\n", canonical)
		return nil
	},
}

func init() {
	targetAddCmd.Flags().StringVar(&targetAddPriority, "priority", "medium", "high, medium, or low")
	targetAddCmd.Flags().StringVar(&targetAddCategory, "category", "", "grouping subdirectory under the destination root (default: all)")
	targetAddCmd.Flags().StringSliceVar(&targetAddExcludes, "exclude", nil, "exclusion pattern, repeatable")

	targetCmd.AddCommand(targetAddCmd)
	targetCmd.AddCommand(targetListCmd)
	targetCmd.AddCommand(targetRemoveCmd)
}
