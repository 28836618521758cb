package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mentor-relay/internal/app"
	"mentor-relay/internal/config"
)

type tableAdmin interface {
	TableName() string
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	Delete(ctx context.Context) error
	Recreate(ctx context.Context) error
}

var newTableAdmin = func(ctx context.Context) (tableAdmin, error) {
	region, table, err := config.LoadTable(os.Getenv)
	if err != nil {
		return nil, err
	}
	awsCfg, err := app.LoadAWS(ctx, region)
	if err != nil {
		return nil, err
	}
	return app.NewStore(awsCfg, table)
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Manage the conversation history table",
}

var tableStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the history table exists",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTable(cmd, func(ctx context.Context, t tableAdmin) error {
			ok, err := t.Exists(ctx)
			if err != nil {
				return err
			}
			state := "missing"
			if ok {
				state = "present"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t.TableName(), state)
			return nil
		})
	},
}

var tableCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the history table if it is missing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTable(cmd, func(ctx context.Context, t tableAdmin) error {
			ok, err := t.Exists(ctx)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", t.TableName())
				return nil
			}
			if err := t.Create(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s created\n", t.TableName())
			return nil
		})
	},
}

var tableDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the history table and every stored conversation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireYes(cmd); err != nil {
			return err
		}
		return withTable(cmd, func(ctx context.Context, t tableAdmin) error {
			if err := t.Delete(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", t.TableName())
			return nil
		})
	},
}

var tableRecreateCmd = &cobra.Command{
	Use:   "recreate",
	Short: "Drop and recreate the history table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireYes(cmd); err != nil {
			return err
		}
		return withTable(cmd, func(ctx context.Context, t tableAdmin) error {
			if err := t.Recreate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s recreated\n", t.TableName())
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{tableDeleteCmd, tableRecreateCmd} {
		c.Flags().Bool("yes", false, "confirm destruction of all stored history")
	}
	tableCmd.AddCommand(tableStatusCmd)
	tableCmd.AddCommand(tableCreateCmd)
	tableCmd.AddCommand(tableDeleteCmd)
	tableCmd.AddCommand(tableRecreateCmd)
}

func requireYes(cmd *cobra.Command) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return fmt.Errorf("refusing to %s without --yes", cmd.Name())
	}
	return nil
}

func withTable(cmd *cobra.Command, fn func(ctx context.Context, t tableAdmin) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	t, err := newTableAdmin(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, t)
}
