// Job - обработка сторно
// Kafka refunds -> возврат кредитов на пакеты транзакции
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	app "github.com/glkeru/credits/internal/app"
	kafka "github.com/glkeru/credits/internal/external/kafka"
	services "github.com/glkeru/credits/internal/services"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, "refunds", app.Options{Events: true})
	if err != nil {
		panic(err)
	}
	defer a.Close()
	logger := a.Logger

	// kafka
	reader, err := kafka.NewKafkaReader(a.Config.Brokers(), kafka.TopicRefunds, a.Config.KafkaGroup)
	if err != nil {
		logger.Error(err.Error())
		panic(err)
	}
	defer reader.Close()

	// os signals
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		cancel()
	}()

	err = kafka.Consume(ctx, reader, a.Config.Workers, logger, func(ctx context.Context, body []byte) error {
		tnxId, err := services.ParseRefund(body)
		if err != nil {
			return err
		}
		tnx, err := a.Service.Refund(ctx, tnxId)
		if err != nil {
			return err
		}
		logger.Info("refund",
			zap.String("tnx", tnx.ID.String()),
			zap.String("account", tnx.AccountID))
		return nil
	})
	if err != nil {
		logger.Error(err.Error())
	}
}
