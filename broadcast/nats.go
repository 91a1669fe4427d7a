// broadcast/nats.go
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/wfunc/duelhub/logger"
)

const natsSubjectPrefix = "duelhub.group."

// NATSFabric is the NATS-backed fabric driver. Group IDs are room
// keys (hex) or seeker addresses, both subject-safe.
type NATSFabric struct {
	*Hub
	conn *nats.Conn
	sub  *nats.Subscription
}

func NewNATSFabric(url string) (*NATSFabric, error) {
	conn, err := nats.Connect(
		url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS: %w", err)
	}

	f := &NATSFabric{Hub: NewHub(), conn: conn}
	sub, err := conn.Subscribe(natsSubjectPrefix+">", f.receive)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe NATS groups: %w", err)
	}
	f.sub = sub
	return f, nil
}

func (f *NATSFabric) Publish(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.conn.Publish(natsSubjectPrefix+ev.Group, data)
}

func (f *NATSFabric) receive(msg *nats.Msg) {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Log.Warnf("Dropping malformed broadcast payload on %s: %v", msg.Subject, err)
		return
	}
	f.dispatch(&ev)
}

func (f *NATSFabric) Close() error {
	if err := f.sub.Unsubscribe(); err != nil {
		return err
	}
	f.conn.Close()
	return nil
}
