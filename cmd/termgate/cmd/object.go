package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runthings/termgate/taxonomy"
)

var objectCmd = &cobra.Command{
	Use:   "object",
	Short: "Manage content objects",
}

var (
	objectType   string
	objectPath   string
	objectTitle  string
	objectParent int64
	objectTerm   int64
)

var objectPutCmd = &cobra.Command{
	Use:   "put <id>",
	Short: "Create or replace an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return a.catalog.PutObject(taxonomy.Object{
			ID:       id,
			Type:     objectType,
			ParentID: objectParent,
			TermID:   objectTerm,
			Path:     objectPath,
			Title:    objectTitle,
		})
	},
}

var objectAssignCmd = &cobra.Command{
	Use:   "assign <object-id> <term-id>",
	Short: "Tag an object with a term (0 removes the tag)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var termID int64
		if args[1] != "0" {
			if termID, err = parseID(args[1]); err != nil {
				return err
			}
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return a.catalog.AssignTerm(id, termID)
	},
}

var objectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List objects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		objects, err := a.catalog.Objects()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tPARENT\tTERM\tPATH\tTITLE")
		for _, o := range objects {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n", o.ID, o.Type, o.ParentID, o.TermID, o.Path, o.Title)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(objectCmd)
	objectCmd.AddCommand(objectPutCmd, objectAssignCmd, objectListCmd)

	objectPutCmd.Flags().StringVar(&objectType, "type", "post", "Object type")
	objectPutCmd.Flags().StringVar(&objectPath, "path", "", "Path the object is served on")
	objectPutCmd.Flags().StringVar(&objectTitle, "title", "", "Object title")
	objectPutCmd.Flags().Int64Var(&objectParent, "parent", 0, "Parent object id")
	objectPutCmd.Flags().Int64Var(&objectTerm, "term", 0, "Access-control term id")
	objectPutCmd.MarkFlagRequired("path")
}
