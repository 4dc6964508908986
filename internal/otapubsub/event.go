package otapubsub

import (
	"context"
	"encoding/json"

	"github.com/frantjc/ota"
	"gocloud.dev/pubsub"
)

const (
	EventUploaded = "uploaded"
	EventDeleted  = "deleted"
)

// Event announces a change to the registry.
type Event struct {
	Type string  `json:"type"`
	App  ota.App `json:"app"`
}

func Publish(ctx context.Context, topic *pubsub.Topic, typ string, app *ota.App) error {
	body, err := json.Marshal(&Event{Type: typ, App: *app})
	if err != nil {
		return err
	}

	return topic.Send(ctx, &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			"type": typ,
			"id":   app.ID,
		},
	})
}

// Receive hands every Event on subscription to handle until ctx is done
// or either fails. Messages that are not Events are acked and dropped.
func Receive(ctx context.Context, subscription *pubsub.Subscription, handle func(context.Context, *Event) error) error {
	log := ota.LoggerFrom(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := subscription.Receive(ctx)
			if err != nil {
				return err
			}

			event := &Event{}
			if err = json.Unmarshal(msg.Body, event); err != nil {
				log.Error(err, "dropping message")
				msg.Ack()
				continue
			}

			if err = handle(ctx, event); err != nil {
				if msg.Nackable() {
					msg.Nack()
				}
				return err
			}

			msg.Ack()
		}
	}
}

// LogEvent is a handler for Receive that logs each Event.
func LogEvent(ctx context.Context, event *Event) error {
	ota.LoggerFrom(ctx).Info(event.Type+" app "+event.App.ID, "name", event.App.Name, "bundleId", event.App.BundleID, "version", event.App.Version)
	return nil
}
