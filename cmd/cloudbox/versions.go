package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <file-id>",
	Short: "List the prior versions of a file, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		versions, err := app.client.ListFileVersions(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(versions) == 0 {
			fmt.Fprintln(out, "no prior versions")
			return nil
		}

		tw := newTable(out)
		fmt.Fprintln(tw, "ID\tSIZE\tMODIFIED\tSHA-1")
		for _, v := range versions {
			id := v.ID
			if v.IsTrashed() {
				id = faintColor.Sprint(id + " (deleted)")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, formatSize(v.Size), formatTime(v.ModifiedAt), v.SHA1)
		}
		return tw.Flush()
	},
}

var versionRmCmd = &cobra.Command{
	Use:   "version-rm <file-id> <version-id>",
	Short: "Delete a prior version of a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := app.client.DeleteFileVersion(ctx, args[0], args[1]); err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "Deleted version %s of %s", args[1], args[0])
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <file-id> <version-id>",
	Short: "Make a prior version the current version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		v, err := app.client.PromoteFileVersion(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "Promoted %s; new current version %s (%s)", args[1], v.ID, v.SHA1)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd, versionRmCmd, promoteCmd)
}
