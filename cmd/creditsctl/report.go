package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(tnxCmd)
	rootCmd.AddCommand(attemptsCmd)

	for _, c := range []*cobra.Command{tnxCmd, attemptsCmd} {
		c.Flags().String("from", "", "Period start YYYY-MM-DD")
		c.Flags().String("to", "", "Period end YYYY-MM-DD, inclusive")
		_ = c.MarkFlagRequired("from")
		_ = c.MarkFlagRequired("to")
	}
}

var balanceCmd = &cobra.Command{
	Use:   "balance ACCOUNT_ID",
	Short: "Show available balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runBalance,
}

func runBalance(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	balance, err := a.Service.Balance(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]any{"accountId": args[0], "balance": balance})
}

var tnxCmd = &cobra.Command{
	Use:   "tnx ACCOUNT_ID",
	Short: "List transactions for a period",
	Args:  cobra.ExactArgs(1),
	RunE:  runTnx,
}

func runTnx(cmd *cobra.Command, args []string) error {
	from, to, err := period(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	tnxs, err := a.Service.Transactions(cmd.Context(), args[0], from, to)
	if err != nil {
		return err
	}
	return printJSON(cmd, tnxs)
}

var attemptsCmd = &cobra.Command{
	Use:   "attempts ACCOUNT_ID",
	Short: "List redemption attempts from the audit log",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttempts,
}

func runAttempts(cmd *cobra.Command, args []string) error {
	from, to, err := period(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	if a.Audit == nil {
		return fmt.Errorf("audit log is not configured: set CREDITS_MONGO_URI")
	}
	attempts, err := a.Audit.GetAttempts(cmd.Context(), args[0], from, to)
	if err != nil {
		return err
	}
	return printJSON(cmd, attempts)
}
