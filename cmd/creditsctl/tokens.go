package main

import (
	"fmt"

	model "github.com/glkeru/credits/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(redeemCmd)
	rootCmd.AddCommand(refundCmd)
	rootCmd.AddCommand(receiptCmd)

	issueCmd.Flags().Duration("ttl", 0, "Token lifetime (default from config)")
	redeemCmd.Flags().StringP("clinic", "c", "", "Counterparty (clinic) ID")
	redeemCmd.Flags().Int64P("credits", "n", 0, "Credits to debit")
}

var issueCmd = &cobra.Command{
	Use:   "issue ACCOUNT_ID HOLDER_ID",
	Short: "Issue a single-use redemption token",
	Args:  cobra.ExactArgs(2),
	RunE:  runIssue,
}

func runIssue(cmd *cobra.Command, args []string) error {
	ttl, _ := cmd.Flags().GetDuration("ttl")
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	issued, err := a.Service.Issue(cmd.Context(), args[0], args[1], ttl)
	if err != nil {
		return err
	}
	return printJSON(cmd, issued)
}

var previewCmd = &cobra.Command{
	Use:   "preview TOKEN",
	Short: "Show token claims without consuming it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	preview, err := a.Service.Preview(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, preview)
}

var redeemCmd = &cobra.Command{
	Use:   "redeem TOKEN",
	Short: "Redeem a token and debit credits",
	Args:  cobra.ExactArgs(1),
	RunE:  runRedeem,
}

func runRedeem(cmd *cobra.Command, args []string) error {
	clinic, _ := cmd.Flags().GetString("clinic")
	credits, _ := cmd.Flags().GetInt64("credits")
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	tnx, err := a.Service.Redeem(cmd.Context(), model.RedeemRequest{
		Token:          args[0],
		CounterpartyID: clinic,
		Credits:        credits,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, tnx)
}

var refundCmd = &cobra.Command{
	Use:   "refund TNX_ID",
	Short: "Reverse a committed transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefund,
}

func runRefund(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	tnx, err := a.Service.Refund(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(cmd, tnx)
}


var receiptCmd = &cobra.Command{
	Use:   "receipt TNX_ID",
	Short: "Show a transaction by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runReceipt,
}

func runReceipt(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	tnx, err := a.Service.Transaction(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(cmd, tnx)
}
