package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vertextoedge/cloudbox/internal/port"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account that owns the access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		user, err := app.client.GetCurrentUser(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> %s\n", user.Name, user.Login, faintColor.Sprint(user.ID))
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [folder-id]",
	Short: "List the items of a folder (default: root folder 0)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		folderID := "0"
		if len(args) == 1 {
			folderID = args[0]
		}

		items, err := app.client.ListAllFolderItems(ctx, folderID, "name", "size", "sha1")
		if err != nil {
			return err
		}

		tw := newTable(cmd.OutOrStdout())
		fmt.Fprintln(tw, "ID\tTYPE\tSIZE\tNAME")
		for _, item := range items {
			name := item.Name
			size := formatSize(item.Size)
			if item.IsFolder() {
				name = dirColor.Sprint(name + "/")
				size = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.ID, item.Type, size, name)
		}
		return tw.Flush()
	},
}

var infoFields []string

var infoCmd = &cobra.Command{
	Use:   "info <file-id>",
	Short: "Show a file's information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		file, err := app.client.GetFileInfo(ctx, args[0], infoFields...)
		if err != nil {
			return err
		}
		printFile(cmd.OutOrStdout(), file)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <file-id> <name>",
	Short: "Rename a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateFile(cmd, args[0], &port.FileUpdate{Name: &args[1]})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <file-id> <text...>",
	Short: "Set a file's description",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description := strings.Join(args[1:], " ")
		return updateFile(cmd, args[0], &port.FileUpdate{Description: &description})
	},
}

var copyName string

var copyCmd = &cobra.Command{
	Use:   "copy <file-id> <folder-id>",
	Short: "Copy a file into a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		file, err := app.client.CopyFile(ctx, args[0], args[1], copyName)
		if err != nil {
			return err
		}
		printOK(cmd.OutOrStdout(), "Copied to %s as %s", args[1], file.Name)
		printFile(cmd.OutOrStdout(), file)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <file-id>...",
	Short: "Move files to the trash",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		for _, id := range args {
			if err := app.client.DeleteFile(ctx, id); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "Deleted %s", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd, lsCmd, infoCmd, renameCmd, describeCmd, copyCmd, rmCmd)

	infoCmd.Flags().StringSliceVar(&infoFields, "fields", nil, "only return these fields (e.g. name,size)")
	copyCmd.Flags().StringVarP(&copyName, "name", "n", "", "name of the copy (default: original name)")
}

func updateFile(cmd *cobra.Command, fileID string, update *port.FileUpdate) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	file, err := app.client.UpdateFileInfo(ctx, fileID, update)
	if err != nil {
		return err
	}
	printOK(cmd.OutOrStdout(), "Updated %s", file.ID)
	printFile(cmd.OutOrStdout(), file)
	return nil
}
