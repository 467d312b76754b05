// Package redisstore keeps sessions and one-time grants in Redis so that
// several gateway replicas share them.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qbitshield/authgate/pkg/identity"
)

var (
	_ identity.SessionStore  = (*Sessions)(nil)
	_ identity.ArtifactStore = (*Artifacts)(nil)
)

const defaultTombstoneTTL = time.Hour

type Sessions struct {
	client redis.UniversalClient
	prefix string
}

func NewSessions(client redis.UniversalClient, prefix string) *Sessions {
	return &Sessions{client: client, prefix: prefix + "session:"}
}

func (s *Sessions) Save(ctx context.Context, rec identity.SessionRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redisstore: encode session: %w", err)
	}
	return s.client.Set(ctx, s.prefix+rec.ID, data, ttl).Err()
}

func (s *Sessions) Load(ctx context.Context, id string) (*identity.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, identity.ErrSessionNotFound
		}
		return nil, err
	}

	var rec identity.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("redisstore: decode session: %w", err)
	}
	return &rec, nil
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.prefix+id).Err()
}

// consumeScript deletes the grant and leaves a tombstone in one step.
// Replies {1, value} on success, {2} for a tombstoned key, {0} otherwise.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
	redis.call('DEL', KEYS[1])
	redis.call('SET', KEYS[2], '1', 'PX', ARGV[1])
	return {1, v}
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return {2}
end
return {0}
`)

type Artifacts struct {
	client       redis.UniversalClient
	prefix       string
	tombstoneTTL time.Duration
}

type ArtifactsOption func(*Artifacts)

// WithTombstoneTTL sets how long a consumed key keeps answering
// ErrArtifactConsumed instead of ErrArtifactNotFound.
func WithTombstoneTTL(d time.Duration) ArtifactsOption {
	return func(a *Artifacts) { a.tombstoneTTL = d }
}

func NewArtifacts(client redis.UniversalClient, prefix string, opts ...ArtifactsOption) *Artifacts {
	a := &Artifacts{client: client, prefix: prefix + "grant:", tombstoneTTL: defaultTombstoneTTL}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Artifacts) key(ns identity.Namespace, key string) string {
	return a.prefix + string(ns) + ":" + key
}

func (a *Artifacts) tombstone(ns identity.Namespace, key string) string {
	return a.key(ns, key) + ":used"
}

func (a *Artifacts) Put(ctx context.Context, ns identity.Namespace, key string, value []byte, ttl time.Duration) error {
	return a.client.Set(ctx, a.key(ns, key), value, ttl).Err()
}

func (a *Artifacts) Peek(ctx context.Context, ns identity.Namespace, key string) ([]byte, error) {
	data, err := a.client.Get(ctx, a.key(ns, key)).Bytes()
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	n, err := a.client.Exists(ctx, a.tombstone(ns, key)).Result()
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, identity.ErrArtifactConsumed
	}
	return nil, identity.ErrArtifactNotFound
}

func (a *Artifacts) Consume(ctx context.Context, ns identity.Namespace, key string) ([]byte, error) {
	res, err := consumeScript.Run(ctx, a.client,
		[]string{a.key(ns, key), a.tombstone(ns, key)},
		a.tombstoneTTL.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("redisstore: consume: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("redisstore: consume: empty reply")
	}

	status, _ := res[0].(int64)
	switch status {
	case 1:
		if len(res) < 2 {
			return nil, fmt.Errorf("redisstore: consume: missing value")
		}
		v, _ := res[1].(string)
		return []byte(v), nil
	case 2:
		return nil, identity.ErrArtifactConsumed
	default:
		return nil, identity.ErrArtifactNotFound
	}
}
