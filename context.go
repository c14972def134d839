package main

import (
	"context"
	syslog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm/logger"
)

// reqContext is cancelled on SIGINT or SIGTERM.
func reqContext(cctx *cli.Context) context.Context {
	ctx, cancel := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		cancel()
		log.Warn("shutting down")
	}()
	return ctx
}

func gormLogger() logger.Interface {
	return logger.New(
		syslog.New(os.Stdout, "\r\n", syslog.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
}
