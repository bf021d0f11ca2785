package cli

import (
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/zenkai/pkg/orgmode"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tasks from other tools",
	}
	cmd.AddCommand(newImportOrgCmd(a))
	return cmd
}

func newImportOrgCmd(a *app) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "org FILE...",
		Short: "Import TODO headlines from Org-mode files",
		Long: "Import TODO, DOING, DONE and SOMEDAY headlines. :EFFORT: becomes the task " +
			"duration and DEADLINE its deadline. Headlines matching an existing task move it instead.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := orgmode.ParseFiles(args, a.loc)
			if err != nil {
				return err
			}
			return a.addTasks(cmd.Context(), cmd.OutOrStdout(), orgmode.FilterTasks(tasks, tag))
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only import headlines with this tag")
	return cmd
}
