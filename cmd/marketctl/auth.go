package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage login state",
}

var purgeChallengesCmd = &cobra.Command{
	Use:   "purge-challenges",
	Short: "Delete used and expired login challenges",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, err := loadServices()
		if err != nil {
			return err
		}
		n, err := svc.Auth.PurgeChallenges(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d login challenges\n", n)
		return nil
	},
}

func init() {
	authCmd.AddCommand(purgeChallengesCmd)
}
