package natsio

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Config describes the NATS connection shared by the collector and the sink.
type Config struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "safe-detector"
	}
}

// Connect dials NATS with infinite reconnects so a broker restart never stops
// the detector.
func Connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("nats_closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	return nc, nil
}
