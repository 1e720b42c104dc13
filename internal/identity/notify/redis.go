package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultOutboxKey     = "portal:mail:outbox"
	DefaultSessionPrefix = "portal:"

	defaultTimeout = 2 * time.Second
)

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// MailJob is the outbox record consumed by the mail relay.
type MailJob struct {
	// ID lets the relay drop duplicates when a push is retried.
	ID       string          `json:"id"`
	To       string          `json:"to"`
	Template domain.Template `json:"template"`
	Link     string          `json:"link,omitempty"`
	QueuedAt time.Time       `json:"queued_at"`
}

// RedisDispatcher queues emails on a Redis list for an external relay.
type RedisDispatcher struct {
	Client *redis.Client
	Key    string
	Now    func() time.Time
}

func NewRedisDispatcher(client *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{Client: client, Key: DefaultOutboxKey, Now: time.Now}
}

func (d *RedisDispatcher) Send(ctx context.Context, e domain.Email) error {
	job := MailJob{
		ID:       uuid.NewString(),
		To:       e.To,
		Template: e.Template,
		Link:     e.Link,
		QueuedAt: d.Now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode mail job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := d.Client.LPush(ctx, d.Key, payload).Err(); err != nil {
		return fmt.Errorf("queue mail job: %w", err)
	}
	return nil
}

// RedisSessionInvalidator ends sessions kept by the portal's session layer.
// Each session lives at <prefix>session:<sid>; the set <prefix>sessions:<id>
// indexes the sessions of one identity.
type RedisSessionInvalidator struct {
	Client *redis.Client
	Prefix string
}

func NewRedisSessionInvalidator(client *redis.Client) *RedisSessionInvalidator {
	return &RedisSessionInvalidator{Client: client, Prefix: DefaultSessionPrefix}
}

func (s *RedisSessionInvalidator) indexKey(identityID string) string {
	return s.Prefix + "sessions:" + identityID
}

func (s *RedisSessionInvalidator) sessionKey(sid string) string {
	return s.Prefix + "session:" + sid
}

// Track records a session for identityID. The session layer owns the
// session payload; Track only maintains the index used for invalidation.
func (s *RedisSessionInvalidator) Track(ctx context.Context, identityID, sid string, payload any, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.sessionKey(sid), data, ttl)
		p.SAdd(ctx, s.indexKey(identityID), sid)
		return nil
	})
	if err != nil {
		return fmt.Errorf("track session: %w", err)
	}
	return nil
}

// InvalidateAll deletes every indexed session of identityID and the index.
func (s *RedisSessionInvalidator) InvalidateAll(ctx context.Context, identityID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	index := s.indexKey(identityID)
	sids, err := s.Client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, s.sessionKey(sid))
	}
	keys = append(keys, index)

	_, err = s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}
