// internal/queue/nats.go
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fawad-mazhar/runweave/internal/config"
	"github.com/fawad-mazhar/runweave/internal/models"
	"github.com/nats-io/nats.go"
)

// NATS publishes scheduler lifecycle events for reporting and visualization
// consumers. Events are fire-and-forget; a publish failure never affects
// scheduling.
type NATS struct {
	conn   *nats.Conn
	config config.NATSConfig
}

func NewNATS(cfg config.NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("runweave"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATS{
		conn:   conn,
		config: cfg,
	}, nil
}

// Publish sends one event to "<eventsSubject>.<type>" so consumers can
// subscribe to the whole stream or a single event kind.
func (n *NATS) Publish(_ context.Context, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", n.config.EventsSubject, strings.ToLower(string(event.Type)))
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Drain()
	}
}
