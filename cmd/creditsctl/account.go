package main

import (
	"fmt"
	"time"

	model "github.com/glkeru/credits/internal/models"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountCreateCmd)
	rootCmd.AddCommand(grantCmd)
	grantCmd.AddCommand(grantAddCmd)

	grantAddCmd.Flags().Int64P("credits", "c", 0, "Credits in the grant")
	grantAddCmd.Flags().IntP("days", "d", 30, "Days until the grant expires")
	grantAddCmd.Flags().String("from", "", "Activation date YYYY-MM-DD (default: now)")
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage credit accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create ACCOUNT_ID HOLDER_ID",
	Short: "Create an active credit account",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountCreate,
}

func runAccountCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	account := model.CreditAccount{
		ID:        args[0],
		HolderID:  args[1],
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	err = a.Storage.AccountCreate(cmd.Context(), account)
	if err != nil {
		return err
	}
	return printJSON(cmd, account)
}

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Manage credit grants",
}

var grantAddCmd = &cobra.Command{
	Use:   "add ACCOUNT_ID",
	Short: "Add a credit grant to an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrantAdd,
}

func runGrantAdd(cmd *cobra.Command, args []string) error {
	credits, _ := cmd.Flags().GetInt64("credits")
	days, _ := cmd.Flags().GetInt("days")
	fromStr, _ := cmd.Flags().GetString("from")
	if credits <= 0 {
		return fmt.Errorf("--credits must be positive")
	}
	if days <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	activated := time.Now().UTC()
	if fromStr != "" {
		from, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return fmt.Errorf("--from: expected YYYY-MM-DD")
		}
		activated = from
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	grant, err := a.Storage.GrantCreate(cmd.Context(), model.CreditGrant{
		AccountID:    args[0],
		TotalCredits: credits,
		Remaining:    credits,
		ActivatedAt:  activated,
		ExpiresAt:    activated.AddDate(0, 0, days),
		Active:       true,
	})
	if err != nil {
		return err
	}
	// баланс в кеше устарел
	a.Ledger.Forget(cmd.Context(), args[0])
	return printJSON(cmd, grant)
}
