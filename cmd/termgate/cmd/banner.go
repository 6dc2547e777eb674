package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const banner = `
  _                                  _
 | |_ ___ _ __ _ __ ___   __ _  __ _| |_ ___
 | __/ _ \ '__| '_ ` + "`" + ` _ \ / _` + "`" + ` |/ _` + "`" + ` | __/ _ \
 | ||  __/ |  | | | | | | (_| | (_| | ||  __/
  \__\___|_|  |_| |_| |_|\__, |\__,_|\__\___|
                         |___/
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Term Password Gate - Version %s\x1b[0m\n\n", Version)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
