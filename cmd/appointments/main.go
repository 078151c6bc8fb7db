// Job - обработка подтвержденных приемов
// Kafka appointments -> погашение токена пациента
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

	a, err := app.New(ctx, "appointments", app.Options{Audit: true, Events: true})
	if err != nil {
		panic(err)
	}
	defer a.Close()
	logger := a.Logger

	// kafka
	reader, err := kafka.NewKafkaReader(a.Config.Brokers(), kafka.TopicAppointments, a.Config.KafkaGroup)
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
		appointment, err := services.ParseAppointment(body)
		if err != nil {
			return err
		}
		tnx, err := a.Service.ConfirmAppointment(ctx, appointment)
		if err != nil {
			return err
		}
		logger.Info("appointment paid",
			zap.String("appointment", appointment.AppointmentID),
			zap.String("tnx", tnx.ID.String()),
			zap.String("code", tnx.Code))
		return nil
	})
	if err != nil {
		logger.Error(err.Error())
	}
}
