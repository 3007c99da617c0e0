package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/freyjabench/pkg/binding"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <table> <key>",
	Short: "Read a record",
	Long: `Read the record stored under (table, key) and print its fields.

With the default exclude filter, fields named by --fields are left out of the
result. Set binding.field_filter to project to return only those fields.

Example:
  freyjabench read usertable user1
  freyjabench read usertable user1 --fields field0,field1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}

		var fields []string
		if cmd.Flags().Changed("fields") {
			fields, _ = cmd.Flags().GetStringSlice("fields")
		}

		result, err := s.client.Read(args[0], args[1], fields)
		status := binding.StatusOf(err)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", status, binding.Kind(err))
			return fmt.Errorf("read %s/%s failed: %w", args[0], args[1], err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), status)
		writeRecord(cmd.OutOrStdout(), result)
		return nil
	},
}

// insertCmd represents the insert command
var insertCmd = &cobra.Command{
	Use:   "insert <table> <key> <field=value>...",
	Short: "Insert a record",
	Long: `Insert a record, replacing any record already stored under (table, key).

Example:
  freyjabench insert usertable user1 f1=v1 f2=v2`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, args, (*binding.Client).Insert)
	},
}

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update <table> <key> <field=value>...",
	Short: "Update a record",
	Long: `Update a record. The whole record is overwritten, exactly like insert.

Example:
  freyjabench update usertable user1 f1=changed`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, args, (*binding.Client).Update)
	},
}

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <table> <key>",
	Short: "Delete a record",
	Long: `Delete the record stored under (table, key). Deleting a missing record
succeeds.

Example:
  freyjabench delete usertable user1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}

		err = s.client.Delete(args[0], args[1])
		fmt.Fprintln(cmd.OutOrStdout(), binding.StatusOf(err))
		if err != nil {
			return fmt.Errorf("delete %s/%s failed: %w", args[0], args[1], err)
		}
		return nil
	},
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <table> <start-key> <count>",
	Short: "Scan records (not implemented)",
	Long: `Scan is not supported by the binding and always reports NOT_IMPLEMENTED
without touching the store.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}

		count, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid count %q: %w", args[2], err)
		}

		status, _ := s.client.DoScan(args[0], args[1], count, nil)
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(scanCmd)

	readCmd.Flags().StringSlice("fields", nil, "Field names passed to the read filter")
}

func runWrite(cmd *cobra.Command, args []string, write func(*binding.Client, string, string, map[string]string) error) error {
	s, err := sessionFrom(cmd)
	if err != nil {
		return err
	}

	values, err := parseValues(args[2:])
	if err != nil {
		return err
	}

	err = write(s.client, args[0], args[1], values)
	fmt.Fprintln(cmd.OutOrStdout(), binding.StatusOf(err))
	if err != nil {
		return fmt.Errorf("%s %s/%s failed: %w", cmd.Name(), args[0], args[1], err)
	}
	return nil
}

// parseValues turns field=value arguments into a record
func parseValues(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q: expected field=value", pair)
		}
		values[name] = value
	}
	return values, nil
}

// writeRecord prints fields sorted by name
func writeRecord(w io.Writer, record map[string]string) {
	names := make([]string, 0, len(record))
	for name := range record {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "%s=%s\n", name, record[name])
	}
}
