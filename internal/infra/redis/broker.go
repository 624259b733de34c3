package redis

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/logging"
)

const subscriberBuffer = 16

// Broker is an app.Broker over Redis Pub/Sub on game:{code}:events, so
// players connected to different instances see the same events.
type Broker struct {
	client *redis.Client
	log    *logrus.Entry
}

func NewBroker(client *redis.Client, log *logrus.Entry) *Broker {
	if log == nil {
		log = logging.Discard()
	}
	return &Broker{client: client, log: log}
}

func (b *Broker) Publish(ctx context.Context, event domain.GameEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return storageErr(b.client.Publish(ctx, eventsChannel(event.Code), payload).Err())
}

// Subscribe blocks until Redis confirms the subscription, so events
// published after it returns are not missed.
func (b *Broker) Subscribe(ctx context.Context, code string) (<-chan domain.GameEvent, func(), error) {
	pubsub := b.client.Subscribe(ctx, eventsChannel(code))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, storageErr(err)
	}

	out := make(chan domain.GameEvent, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event domain.GameEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.log.WithError(err).WithField("channel", msg.Channel).Warn("decode game event")
					continue
				}
				deliver(out, event)
			}
		}
	}()
	return out, cancel, nil
}

// deliver never blocks the pub/sub reader: a full buffer loses its oldest event.
func deliver(ch chan domain.GameEvent, event domain.GameEvent) {
	select {
	case ch <- event:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
	default:
	}
}
