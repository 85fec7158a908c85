// Package delivery holds the sinks that records leave the pipeline through.
package delivery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avast/retry-go"
	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"

	"can-telemetry-core/telemetry"
	"can-telemetry-core/utils"
)

// Publisher is the part of *nats.Conn the NATS sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes every record as JSON on one subject.
type NATS struct {
	pub     Publisher
	subject string
	conn    *nats.Conn
}

func NewNATS(pub Publisher, subject string) *NATS {
	return &NATS{pub: pub, subject: subject}
}

// DialNATS connects to url, retrying while the server comes up.
func DialNATS(ctx context.Context, url, subject string, log *utils.Logger) (*NATS, error) {
	var nc *nats.Conn
	err := retry.Do(func() error {
		var err error
		nc, err = nats.Connect(url,
			nats.Name("can-telemetry"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					log.Warn("nats disconnected: %v", err)
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				log.Info("nats reconnected to %s", c.ConnectedUrl())
			}),
		)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("nats connect attempt %d: %v", n+1, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect nats %s", url)
	}
	log.Info("nats connected to %s, subject %s", nc.ConnectedUrl(), subject)
	return &NATS{pub: nc, subject: subject, conn: nc}, nil
}

func (n *NATS) Deliver(_ context.Context, rec telemetry.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	if err := n.pub.Publish(n.subject, b); err != nil {
		return errors.Wrapf(err, "publish %s", n.subject)
	}
	return nil
}

// Close flushes and closes the connection DialNATS opened.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	err := n.conn.Drain()
	n.conn = nil
	return err
}
