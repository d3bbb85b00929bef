package store

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/multilogue/pkg/helpers"
	"github.com/rs/zerolog/log"
)

const changesTopic = "store.changes"

// changeFeed fans store changes out to subscribers over an in-process watermill pubsub.
type changeFeed struct {
	pubSub *gochannel.GoChannel
}

func newChangeFeed() *changeFeed {
	return &changeFeed{
		pubSub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 16,
		}, helpers.NewWatermill(log.Logger)),
	}
}

func (f *changeFeed) publish(c Change) {
	b, err := json.Marshal(c)
	if err != nil {
		log.Warn().Err(err).Str("key", c.Key).Msg("failed to encode store change")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("key", c.Key)
	if err := f.pubSub.Publish(changesTopic, msg); err != nil {
		log.Warn().Err(err).Str("key", c.Key).Msg("failed to publish store change")
	}
}

func (f *changeFeed) subscribe(ctx context.Context) (<-chan Change, error) {
	msgs, err := f.pubSub.Subscribe(ctx, changesTopic)
	if err != nil {
		return nil, err
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var c Change
			err := json.Unmarshal(msg.Payload, &c)
			msg.Ack()
			if err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable store change")
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *changeFeed) close() error {
	return f.pubSub.Close()
}
