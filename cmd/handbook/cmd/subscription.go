package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(statusCmd)
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe [user-id]",
	Short: "Activate or renew a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		active, err := c.Subscribe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s subscribed: %t\n", args[0], active)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [user-id]",
	Short: "Check whether a subscription is active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		active, err := c.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		state := "inactive"
		if active {
			state = "active"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], state)
		return nil
	},
}
