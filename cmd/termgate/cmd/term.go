package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runthings/termgate/taxonomy"
)

var termCmd = &cobra.Command{
	Use:   "term",
	Short: "Manage access-control terms and their passwords",
}

var termAddCmd = &cobra.Command{
	Use:   "add <id> <name>",
	Short: "Create or rename a term",
	Args:  cobra.ExactArgs(2),
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
		return a.catalog.PutTerm(taxonomy.Term{ID: id, Name: args[1]})
	},
}

var termSetPasswordCmd = &cobra.Command{
	Use:   "set-password <id>",
	Short: "Set a term's password, read from stdin",
	Long: `Reads the password from the first line of stdin and stores its hash.
Changing a term's password invalidates every session issued for it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		password, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		if _, err := a.catalog.Term(id); err != nil {
			return err
		}
		return a.creds.SetHash(id, password)
	},
}

var termClearPasswordCmd = &cobra.Command{
	Use:   "clear-password <id>",
	Short: "Remove a term's password, blocking access to its objects",
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
		return a.creds.Clear(id)
	},
}

var termListCmd = &cobra.Command{
	Use:   "list",
	Short: "List terms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		terms, err := a.catalog.Terms()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSLUG\tPASSWORD")
		for _, t := range terms {
			hash, err := a.creds.Hash(t.ID)
			if err != nil {
				return err
			}
			state := "set"
			if hash == "" {
				state = "unset"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Name, t.Slug, state)
		}
		return tw.Flush()
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("no password on stdin")
	}
	return password, nil
}

func init() {
	rootCmd.AddCommand(termCmd)
	termCmd.AddCommand(termAddCmd, termSetPasswordCmd, termClearPasswordCmd, termListCmd)
}
