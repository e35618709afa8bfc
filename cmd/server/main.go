package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/simbridge/go-esim-gateway/internal/config"
	"github.com/simbridge/go-esim-gateway/server"
)

func main() {
	log := newLogger()
	for {
		if err := run(log); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run(log zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway, cleanup, err := server.Bootstrap(ctx, c, log)
	if err != nil {
		return fmt.Errorf("server.Bootstrap: %w", err)
	}
	defer cleanup()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: gateway}
	go listenAndServe(httpServer, log)
	waitForStopSignal()
	cancel()
	returnError = shutdown(httpServer)
	return returnError
}

func newLogger() zerolog.Logger {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if os.Getenv("ENV") == "DEV" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log
}

func listenAndServe(httpServer *http.Server, log zerolog.Logger) error {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
