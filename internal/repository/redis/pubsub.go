package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClassesPubSub fans out "class changed" notices so open availability
// streams can refresh.
type ClassesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewClassesPubSub(rdb *redis.Client) *ClassesPubSub {
	return &ClassesPubSub{
		rdb:     rdb,
		channel: ChannelClassesChanged(),
	}
}

type classChangedMsg struct {
	Type    string `json:"type"`
	ClassID int64  `json:"class_id"`
	TsUnix  int64  `json:"ts_unix"`
}

func (p *ClassesPubSub) PublishClassChanged(ctx context.Context, classID int64) error {
	msg := classChangedMsg{
		Type:    "class_changed",
		ClassID: classID,
		TsUnix:  time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe calls handler for every class change until ctx is done or the
// subscription closes.
func (p *ClassesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, classID int64)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev classChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.ClassID != 0 {
				handler(ctx, ev.ClassID)
			}
		}
	}
}
