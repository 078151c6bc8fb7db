// HTTP API - выпуск, просмотр и погашение токенов, сторно, баланс
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/glkeru/credits/internal/api/http"
	app "github.com/glkeru/credits/internal/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	a, err := app.New(ctx, "api", app.Options{Audit: true, Events: true})
	if err != nil {
		panic(err)
	}
	defer a.Close()
	logger := a.Logger

	// api handlers
	r := api.NewHandler(a.Service, logger, a.Registry)
	srv := &http.Server{
		Handler:      otelhttp.NewHandler(r, "credits-api"),
		Addr:         a.Config.HTTPAddr,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
	}()
	logger.Info("http server started", zap.String("addr", a.Config.HTTPAddr))

	// shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(timeout)
	if err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
