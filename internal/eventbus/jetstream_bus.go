package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
)

const subjectPrefix = "factory.events."

// JetStreamBus реализует EventBus поверх NATS JetStream.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

// NewJetStreamBus подключается к кластеру NATS и гарантирует наличие стрима.
// url: nats://127.0.0.1:4222, stream: "FACTORY_EVENTS".
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "FACTORY_EVENTS"
	}

	nc, err := nats.Connect(url, nats.Name("factory-server"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		_ = nc.Drain()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Стрим покрывает все типы событий: factory.events.*
	if _, err = js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subjectPrefix + "*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			_ = nc.Drain()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	return &JetStreamBus{nc: nc, js: js, stream: stream}, nil
}

// Publish сериализует Envelope в JSON и публикует в subject factory.events.<type>.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(subjectPrefix + ev.EventType)
	msg.Data = data
	// Дедупликация повторных публикаций на стороне стрима
	msg.Header.Set(nats.MsgIdHdr, ev.ID)

	if _, err := jb.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		jb.dropped.Add(1)
		return fmt.Errorf("jetstream publish %s: %w", ev.EventType, err)
	}
	jb.published.Add(1)
	return nil
}

// Subscribe создаёт durable consumer и вызывает handler асинхронно.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := subjectPrefix + "*"
	if len(f.Types) == 1 {
		subj = subjectPrefix + f.Types[0]
	}

	durable := nats.Durable("sub_" + uuid.NewString()[:8])

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			jb.dropped.Add(1)
			_ = msg.Term()
			return
		}
		if matchFilter(&ev, f) {
			h(ctx, &ev)
			jb.consumed.Add(1)
		}
		_ = msg.Ack()
	}, nats.ManualAck(), durable, nats.AckWait(30*time.Second))
	if err != nil {
		return nil, err
	}
	return &jetSub{natSub}, nil
}

// jetSub обёртка вокруг *nats.Subscription чтобы удовлетворить наш интерфейс.
type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: jb.published.Load(),
		Consumed:  jb.consumed.Load(),
		Dropped:   jb.dropped.Load(),
		InFlight:  0, // jetstream keeps its own queue
	}
}

// Close дожидается отправки буферов и закрывает соединение
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
