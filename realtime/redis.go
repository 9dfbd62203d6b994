package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"rentahome/utils"
)

// RedisBridge публикует события в канал Redis и пересылает сообщения канала в локальный Hub,
// чтобы подписчики всех экземпляров сервиса получали одни и те же события.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
}

// NewRedisBridge подключается к Redis и проверяет соединение
func NewRedisBridge(addr, password string, db int, channel string, hub *Hub) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	utils.LogInfo("Redis connected successfully (%s, channel %s)", addr, channel)
	return &RedisBridge{client: client, hub: hub, channel: channel}, nil
}

// Publish отправляет событие в канал Redis
func (b *RedisBridge) Publish(ctx context.Context, ev Event) error {
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", ev.Type, err)
	}
	return nil
}

// Run читает канал Redis до отмены ctx и раздает события локальным подписчикам
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				utils.LogError("Skipping malformed event on %s: %v", b.channel, err)
				continue
			}
			if err := b.hub.Publish(ctx, ev); err != nil {
				return nil
			}
		}
	}
}

// Close закрывает соединение с Redis
func (b *RedisBridge) Close() error {
	return b.client.Close()
}

func encodeEvent(ev Event) ([]byte, error) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", ev.Type, err)
	}
	return data, nil
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Topic == "" {
		return Event{}, fmt.Errorf("event %q has no topic", ev.Type)
	}
	return ev, nil
}
