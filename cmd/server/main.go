// gRPC server - отчеты: баланс и история транзакций по счету
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	reporting "github.com/glkeru/credits/internal/api/grpc"
	app "github.com/glkeru/credits/internal/app"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	ctx := context.Background()

	a, err := app.New(ctx, "reporting", app.Options{})
	if err != nil {
		panic(err)
	}
	defer a.Close()
	logger := a.Logger

	lis, err := net.Listen("tcp", a.Config.GRPCAddr)
	if err != nil {
		panic(err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	grpcServer := grpc.NewServer()
	reporting.RegisterReportingServer(grpcServer, reporting.NewReportingService(a.Service, logger))

	go func() {
		err := grpcServer.Serve(lis)
		if err != nil {
			logger.Error("gRPC server failed", zap.Error(err))
			interrupt <- syscall.SIGTERM
		}
	}()
	logger.Info("gRPC server started", zap.String("addr", a.Config.GRPCAddr))

	<-interrupt
	grpcServer.GracefulStop()
}
