// Command auditor consumes transaction events from RabbitMQ and appends a
// line per event to an audit file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/events"
	"github.com/iliyamo/flight-seat-reservation/internal/logging"
)

func main() {
	def := config.Default()
	fs := pflag.NewFlagSet("auditor", pflag.ExitOnError)
	url := fs.String("amqp-url", firstEnv(def.Events.AMQPURL, "RABBITMQ_URL", "AMQP_URL"), "RabbitMQ URL")
	queue := fs.String("queue", firstEnv(def.Events.Queue, "EVENTS_QUEUE"), "queue to consume")
	out := fs.StringP("out", "o", "logs/audit.log", "audit file")
	level := fs.String("log-level", "info", "log level")
	_ = fs.Parse(os.Args[1:])

	logger, flush, err := logging.New(config.LogConfig{Level: *level, Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer flush()

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		logger.Fatal("create audit directory", zap.Error(err))
	}
	w := &lumberjack.Logger{Filename: *out, MaxSize: 100, MaxBackups: 5}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &events.AuditConsumer{URL: *url, Queue: *queue, Out: w, Logger: logger}
	logger.Info("auditor started", zap.String("queue", *queue), zap.String("out", *out))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("auditor stopped", zap.Error(err))
	}
}

func firstEnv(def string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}
