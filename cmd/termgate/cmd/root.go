package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/runthings/termgate/internal/config"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "termgate",
	Short: "termgate gates content behind per-term passwords",
	Long: `termgate serves content grouped by access-control term. Visitors who enter
a term's password get a cookie granting access to everything tagged with it.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	config.AddFlags(rootCmd.PersistentFlags())
}
