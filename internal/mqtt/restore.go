package mqtt

import (
	"context"
	"sync"
)

// CollectRetained subscribes to topics and returns the first retained
// payload seen on each, waiting until every topic has answered or ctx is
// done. Topics without a retained message are absent from the result. All
// subscriptions are removed before returning.
func CollectRetained(ctx context.Context, c Client, topics []string) (map[string][]byte, error) {
	var mu sync.Mutex
	got := make(map[string][]byte, len(topics))
	done := make(chan struct{})
	closeOnce := sync.OnceFunc(func() { close(done) })

	if len(topics) == 0 {
		return got, nil
	}

	var subscribed []string
	defer func() {
		for _, t := range subscribed {
			c.Unsubscribe(t)
		}
	}()

	for _, topic := range topics {
		err := c.Subscribe(topic, 1, func(m Message) {
			if !m.Retained {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if _, seen := got[m.Topic]; seen {
				return
			}
			got[m.Topic] = m.Payload
			if len(got) == len(topics) {
				closeOnce()
			}
		})
		if err != nil {
			return nil, err
		}
		subscribed = append(subscribed, topic)
	}

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	out := make(map[string][]byte, len(got))
	for k, v := range got {
		out[k] = v
	}
	return out, nil
}
