package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/freyjabench/pkg/storage"
)

// keysCmd represents the keys command
var keysCmd = &cobra.Command{
	Use:   "keys <table>",
	Short: "List the record keys of a table",
	Long: `List the keys stored for a table. Only the log and memory drivers keep an
index that can be listed.

Example:
  freyjabench keys usertable --driver log`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}

		lister, ok := s.client.Engine().(storage.KeyLister)
		if !ok {
			return fmt.Errorf("driver %q cannot list keys", s.cfg.Storage.Driver)
		}

		encoder := s.client.Encoder()
		storageKeys, err := lister.ListKeys(encoder.Prefix(args[0]))
		if err != nil {
			return fmt.Errorf("failed to list keys: %w", err)
		}

		for _, storageKey := range storageKeys {
			_, key, err := encoder.Decode([]byte(storageKey))
			if err != nil {
				s.log.Warnw("skipping undecodable key", "key", storageKey, "error", err)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
}
