// Command notifyd drains the notification queue and delivers each message
// over WhatsApp.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mind-engage/masterclass/internal/config"
	"github.com/mind-engage/masterclass/internal/notify"
)

// prefetch bounds unacked deliveries while Whapi is slow.
const prefetch = 8

func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notifyd stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.WhapiToken == "" {
		return errors.New("WHAPI_API_TOKEN is required")
	}
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if _, err := notify.DeclareQueue(ch, cfg.AMQPQueue); err != nil {
		return fmt.Errorf("declare %s: %w", cfg.AMQPQueue, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, cfg.AMQPQueue, "notifyd", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.AMQPQueue, err)
	}

	logger.Info("consuming", "queue", cfg.AMQPQueue)
	return notify.Consume(ctx, msgs, notify.NewWhapi(cfg.WhapiURL, cfg.WhapiToken, nil), logger)
}
