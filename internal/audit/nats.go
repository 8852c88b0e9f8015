// Package audit publishes transfer-session lifecycle events to an
// external NATS subject on a best-effort basis, grounded on
// go-server/pkg/nats/client.go's connection-handler and Publish
// wrapper, trimmed to the publish-only surface this module needs.
// Spec §4.3 lists session lifecycle events (Complete, NewReceiver,
// ReceiverRemoved, ...) as outward-facing; streaming them to an
// external subject is an ambient addition, not a spec requirement, so
// a missing or unreachable NATS server must never affect the transfer
// engine itself.
package audit

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/adred-codev/filerelay/internal/config"
)

// Event is the JSON envelope published for every session lifecycle
// transition.
type Event struct {
	Kind      string    `json:"kind"`
	SessionID string    `json:"sessionId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	PublicID  string    `json:"publicId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is a best-effort sink for Events. With no URL configured,
// or when the initial connect failed, Publish is a silent no-op.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// New connects to cfg.NATSURL if set. A connect failure is logged and
// returns a Publisher with a nil connection rather than an error,
// since audit delivery is never allowed to block startup.
func New(cfg config.AuditConfig, logger zerolog.Logger) *Publisher {
	log := logger.With().Str("component", "audit").Logger()
	p := &Publisher{subject: cfg.Subject, logger: log}

	if cfg.NATSURL == "" {
		log.Info().Msg("audit publisher disabled: no NATS URL configured")
		return p
	}

	conn, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ConnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("connected to NATS")
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("reconnected to NATS")
		}),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.NATSURL).Msg("failed to connect to NATS, audit publishing disabled")
		return p
	}

	p.conn = conn
	return p
}

// Publish sends ev to the configured subject. A Publisher without a
// connection silently drops the event; a failed publish is logged.
func (p *Publisher) Publish(ev Event) {
	if p.conn == nil {
		return
	}
	ev.Timestamp = time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to marshal audit event")
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn().Err(err).Msg("failed to publish audit event")
	}
}

// Close closes the connection, if any, without draining it first.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	p.conn.Close()
}
