// creditsctl - администрирование счетов и ручные операции с токенами
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	app "github.com/glkeru/credits/internal/app"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var rootCmd = &cobra.Command{
	Use:           "creditsctl",
	Short:         "Credit accounts administration",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// одна сборка зависимостей на процесс
var current *app.App

func openApp(ctx context.Context) (*app.App, error) {
	if current != nil {
		return current, nil
	}
	a, err := app.New(ctx, "creditsctl", app.Options{Audit: true, Events: true})
	if err != nil {
		return nil, err
	}
	current = a
	return a, nil
}

func closeApp() {
	if current != nil {
		current.Close()
		current = nil
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(j))
	return err
}

// период из флагов --from/--to, даты включительно
func period(cmd *cobra.Command) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")
	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--from: expected YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--to: expected YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
	}
	return from, to.Add(24*time.Hour - time.Nanosecond), nil
}

func main() {
	err := rootCmd.Execute()
	closeApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
