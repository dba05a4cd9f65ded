// Package notify announces saved recordings to other processes.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// GrabSaved is published once per recording written to disk.
type GrabSaved struct {
	Path       string    `json:"path"`
	Device     string    `json:"device"`
	SampleRate float64   `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Frames     int       `json:"frames"`
	Seconds    float64   `json:"seconds"`
	SavedAt    time.Time `json:"saved_at"`
}

// Publisher delivers GrabSaved events.
type Publisher interface {
	PublishSaved(ev GrabSaved) error
	Close() error
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSConnAdapter adapts *nats.Conn to Conn
type NATSConnAdapter struct {
	conn *nats.Conn
}

func NewNATSConnAdapter(conn *nats.Conn) *NATSConnAdapter {
	return &NATSConnAdapter{conn: conn}
}

func (a *NATSConnAdapter) Publish(subject string, data []byte) error {
	return a.conn.Publish(subject, data)
}

func (a *NATSConnAdapter) Close() {
	a.conn.Drain()
}

// NATSPublisher publishes GrabSaved events as JSON on one subject.
type NATSPublisher struct {
	conn    Conn
	subject string
	log     zerolog.Logger
}

// Connect dials url and returns a publisher for subject. The connection
// reconnects in the background; publishes made while disconnected are
// buffered by the client.
func Connect(url, subject string, log zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("rolling-sampler"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	log.Info().Str("url", url).Str("subject", subject).Msg("Connected to NATS")
	return NewNATSPublisher(NewNATSConnAdapter(nc), subject, log), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn Conn, subject string, log zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject, log: log}
}

func (p *NATSPublisher) PublishSaved(ev GrabSaved) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	p.log.Debug().Str("subject", p.subject).Str("path", ev.Path).Msg("Published grab")
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishSaved(GrabSaved) error { return nil }
func (Nop) Close() error                 { return nil }
