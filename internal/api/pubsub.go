package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mutaician/p2p-coin-flip/internal/domain"
	"github.com/mutaician/p2p-coin-flip/internal/event"
)

const maxConcurrent = 2

// PublishSessionEvent notifies every seated player of e on its own channel.
func (a *API) PublishSessionEvent(ctx context.Context, e event.Event) error {
	se, ok := e.(domain.SessionEvent)
	if !ok {
		return fmt.Errorf("pubsub: unexpected event %s", e.Name())
	}

	ss := se.Snapshot()
	data := newSession(ss)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, p := range []*domain.Player{&ss.Player1, ss.Player2} {
		if p == nil || p.ParticipantID == "" {
			continue
		}
		p := p
		eg.Go(func() error {
			return a.publishNotification(ctx, p.ParticipantID, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, participantID, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, NotificationChannel(a.prefix, participantID), b).Err()
}

// NotificationChannel is where a participant's session notifications go.
func NotificationChannel(prefix, participantID string) string {
	return fmt.Sprintf("%s:participant:%s", prefix, participantID)
}
