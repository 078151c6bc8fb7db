// Job - выключение сгоревших пакетов кредитов
// Пакеты не удаляются: по ним остаются транзакции и возможен возврат
package main

import (
	"context"

	app "github.com/glkeru/credits/internal/app"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	a, err := app.New(ctx, "expire_grants", app.Options{})
	if err != nil {
		panic(err)
	}
	defer a.Close()

	accounts, err := a.Ledger.ExpireGrants(ctx)
	if err != nil {
		a.Logger.Error(err.Error())
		return
	}
	a.Logger.Info("Job expire grants is finished", zap.Int("accounts", len(accounts)))
}
