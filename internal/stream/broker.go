// Package stream provides the in-process change feed the chat service
// publishes into after every write. Subscribers receive change signals per
// topic and re-query storage for a full snapshot, so any transport (document
// store, message broker, polling) can sit behind the same interface.
package stream

import (
	"sync"
)

// Broker fans change signals out to topic subscribers. Signals carry no
// payload: a pending signal means "the topic changed since you last looked",
// and consecutive changes coalesce into one, so a slow consumer always
// processes the latest state instead of a backlog.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan struct{}
	nextID int
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int]chan struct{})}
}

// Subscribe registers for change signals on a topic. The returned channel
// receives at most one pending signal at a time; the returned cancel func
// disposes the subscription and closes the channel. Cancel is idempotent.
func (b *Broker) Subscribe(topic string) (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{}, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if _, ok := b.subs[topic]; !ok {
		b.subs[topic] = make(map[int]chan struct{})
	}
	b.subs[topic][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if chans, ok := b.subs[topic]; ok {
				delete(chans, id)
				if len(chans) == 0 {
					delete(b.subs, topic)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish signals every subscriber of the topic. Never blocks: a subscriber
// with a signal already pending keeps exactly one.
func (b *Broker) Publish(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close cancels every subscription. Further Subscribe calls return a closed
// channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, chans := range b.subs {
		for id, ch := range chans {
			delete(chans, id)
			close(ch)
		}
		delete(b.subs, topic)
	}
}

// SubscriberCount reports the number of active subscriptions on a topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
