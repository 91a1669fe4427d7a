// broadcast/redis.go
package broadcast

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/duelhub/logger"
)

const redisChannelPrefix = "duelhub:group:"

// RedisFabric crosses process boundaries over redis pub/sub. Every
// publish goes to the wire; events come back through the pattern
// subscription and are dispatched to the local hub, so local and
// remote subscribers observe the same per-publisher order.
type RedisFabric struct {
	*Hub
	rdb    *redis.Client
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

func NewRedisFabric(rdb *redis.Client) *RedisFabric {
	ctx, cancel := context.WithCancel(context.Background())
	f := &RedisFabric{
		Hub:    NewHub(),
		rdb:    rdb,
		pubsub: rdb.PSubscribe(ctx, redisChannelPrefix+"*"),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go f.receive()
	return f
}

func (f *RedisFabric) Publish(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, redisChannelPrefix+ev.Group, data).Err()
}

func (f *RedisFabric) receive() {
	defer close(f.done)
	for msg := range f.pubsub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			logger.Log.Warnf("Dropping malformed broadcast payload on %s: %v", msg.Channel, err)
			continue
		}
		if ev.Group == "" {
			ev.Group = strings.TrimPrefix(msg.Channel, redisChannelPrefix)
		}
		f.dispatch(&ev)
	}
}

func (f *RedisFabric) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.cancel()
		err = f.pubsub.Close()
		<-f.done
	})
	return err
}
