// Job - погашение токенов со сканеров клиник
// RabbitMQ redeems -> погашение -> RabbitMQ confirms
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	app "github.com/glkeru/credits/internal/app"
	rabbit "github.com/glkeru/credits/internal/external/rabbitmq"
	services "github.com/glkeru/credits/internal/services"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, "redeems", app.Options{Audit: true, Events: true})
	if err != nil {
		panic(err)
	}
	defer a.Close()
	logger := a.Logger

	workers := a.Config.Workers
	if workers <= 0 {
		workers = 1
	}

	// rabbitmq
	reader, err := rabbit.NewRabbitConsumer(a.Config.RabbitURL, workers)
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

	// workers
	wg := &sync.WaitGroup{}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker(ctx, a.Service, wg, logger, reader)
	}
	wg.Wait()
}

// worker for rabbitmq messages
func worker(ctx context.Context, serv *services.RedemptionService, wg *sync.WaitGroup, logger *zap.Logger, reader *rabbit.RabbitConsumer) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-reader.Msg:
			if !ok {
				return
			}
			scan, err := services.ParseScan(msg.Body)
			if err != nil {
				logger.Error(err.Error())
				_ = msg.Nack(false, false)
				continue
			}
			confirm := serv.ScanToRedeem(ctx, scan)
			err = reader.Processed(context.WithoutCancel(ctx), confirm)
			if err != nil {
				// повтор сообщения сжег бы токен второй раз: только лог
				logger.Error("confirm not sent",
					zap.String("scan", scan.ScanID),
					zap.String("outcome", confirm.Outcome),
					zap.Error(err))
			}
			_ = msg.Ack(false)
		}
	}
}
