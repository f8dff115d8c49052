package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/joomcode/errorx"
	"github.com/redis/rueidis"
	"github.com/relaycast/relaycast-go/common"
	"github.com/relaycast/relaycast-go/metrics"
	rconfig "github.com/relaycast/relaycast-go/redis"
)

// RedisStore implements presence, history and subscription stores on top of Redis.
// It's also a metrics sink writing room membership events to a capped stream.
//
// Keys layout (prefix omitted):
//   - presence:{nspRoomId} hash of uid -> member
//   - history:{nspRoomId} sorted set of messages scored by timestamp
//   - subscriptions:{connectionId}:{nspRoomId}:{namespace} set of topics
//   - metrics stream of join/leave events
type RedisStore struct {
	config *Config
	rconf  *rconfig.Config

	client   rueidis.Client
	clientMu sync.RWMutex

	unbindScript *rueidis.Lua

	log *log.Entry
}

var (
	_ PresenceStore     = (*RedisStore)(nil)
	_ HistoryStore      = (*RedisStore)(nil)
	_ SubscriptionStore = (*RedisStore)(nil)
	_ metrics.Sink      = (*RedisStore)(nil)
)

func NewRedisStore(c *Config, rc *rconfig.Config) *RedisStore {
	return &RedisStore{
		config: c,
		rconf:  rc,
		log:    log.WithField("context", "store").WithField("provider", "redis"),

		unbindScript: rueidis.NewLuaScript(unbindAllSource),
	}
}

func (s *RedisStore) Start(ctx context.Context) error {
	options, err := s.rconf.ToRueidisOptions()

	if err != nil {
		return errorx.Decorate(err, "invalid redis url")
	}

	c, err := rueidis.NewClient(*options)

	if err != nil {
		return errorx.Decorate(err, "failed to connect to redis")
	}

	s.clientMu.Lock()
	s.client = c
	s.clientMu.Unlock()

	s.log.Debugf("Connected to %v", s.rconf.Hostnames())

	return nil
}

func (s *RedisStore) Shutdown(ctx context.Context) error {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if s.client != nil {
		s.client.Close()
		s.client = nil
	}

	return nil
}

func (s *RedisStore) Announce() string {
	return fmt.Sprintf("Using Redis store at %v (history limit: %d, history ttl: %ds)", s.rconf.Hostnames(), s.config.HistoryLimit, s.config.HistoryTTL)
}

func (s *RedisStore) conn() (rueidis.Client, error) {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()

	if s.client == nil {
		return nil, errorx.IllegalState.New("redis store is not started")
	}

	return s.client, nil
}

func (s *RedisStore) AddMember(ctx context.Context, nspRoomID string, member *Member) error {
	c, err := s.conn()

	if err != nil {
		return err
	}

	data, err := json.Marshal(member)

	if err != nil {
		return err
	}

	key := s.rconf.Key("presence", nspRoomID)

	err = c.Do(ctx, c.B().Hset().Key(key).FieldValue().FieldValue(member.UID, string(data)).Build()).Error()

	if err != nil {
		return errorx.Decorate(err, "failed to add member")
	}

	return nil
}

func (s *RedisStore) RemoveMember(ctx context.Context, nspRoomID string, uid string) (bool, error) {
	c, err := s.conn()

	if err != nil {
		return false, err
	}

	key := s.rconf.Key("presence", nspRoomID)

	removed, err := c.Do(ctx, c.B().Hdel().Key(key).Field(uid).Build()).AsInt64()

	if err != nil {
		return false, errorx.Decorate(err, "failed to remove member")
	}

	return removed > 0, nil
}

func (s *RedisStore) Members(ctx context.Context, nspRoomID string) ([]*Member, error) {
	c, err := s.conn()

	if err != nil {
		return nil, err
	}

	key := s.rconf.Key("presence", nspRoomID)

	values, err := c.Do(ctx, c.B().Hvals().Key(key).Build()).AsStrSlice()

	if err != nil && !rueidis.IsRedisNil(err) {
		return nil, errorx.Decorate(err, "failed to read members")
	}

	members := make([]*Member, 0, len(values))

	for _, value := range values {
		var member Member

		if err := json.Unmarshal([]byte(value), &member); err != nil {
			s.log.WithField("room", nspRoomID).Warnf("Skipping malformed member: %v", err)
			continue
		}

		members = append(members, &member)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].UID < members[j].UID })

	return members, nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, nspRoomID string, msg *common.Message) error {
	c, err := s.conn()

	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)

	if err != nil {
		return err
	}

	key := s.rconf.Key("history", nspRoomID)

	cmds := rueidis.Commands{
		c.B().Zadd().Key(key).ScoreMember().ScoreMember(float64(msg.Timestamp), string(data)).Build(),
	}

	if s.config.HistoryLimit > 0 {
		cmds = append(cmds, c.B().Zremrangebyrank().Key(key).Start(0).Stop(int64(-(s.config.HistoryLimit + 1))).Build())
	}

	if s.config.HistoryTTL > 0 {
		cmds = append(cmds, c.B().Expire().Key(key).Seconds(s.config.HistoryTTL).Build())
	}

	for _, res := range c.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return errorx.Decorate(err, "failed to append history message")
		}
	}

	return nil
}

func (s *RedisStore) Messages(ctx context.Context, nspRoomID string, since int64, limit int) ([]*common.Message, error) {
	c, err := s.conn()

	if err != nil {
		return nil, err
	}

	key := s.rconf.Key("history", nspRoomID)

	values, err := c.Do(ctx, c.B().Zrangebyscore().Key(key).Min(strconv.FormatInt(since, 10)).Max("+inf").Build()).AsStrSlice()

	if err != nil && !rueidis.IsRedisNil(err) {
		return nil, errorx.Decorate(err, "failed to read history")
	}

	if limit > 0 && len(values) > limit {
		values = values[len(values)-limit:]
	}

	messages := make([]*common.Message, 0, len(values))

	for _, value := range values {
		var msg common.Message

		if err := json.Unmarshal([]byte(value), &msg); err != nil {
			s.log.WithField("room", nspRoomID).Warnf("Skipping malformed history message: %v", err)
			continue
		}

		messages = append(messages, &msg)
	}

	return messages, nil
}

func (s *RedisStore) subscriptionsKey(connectionID string, nspRoomID string, namespace string) string {
	return s.rconf.Key("subscriptions", connectionID, nspRoomID, namespace)
}

func (s *RedisStore) AddSubscription(ctx context.Context, connectionID string, nspRoomID string, namespace string, topic string) error {
	c, err := s.conn()

	if err != nil {
		return err
	}

	key := s.subscriptionsKey(connectionID, nspRoomID, namespace)

	err = c.Do(ctx, c.B().Sadd().Key(key).Member(topic).Build()).Error()

	if err != nil {
		return errorx.Decorate(err, "failed to add subscription")
	}

	return nil
}

func (s *RedisStore) RemoveSubscription(ctx context.Context, connectionID string, nspRoomID string, namespace string, topic string) error {
	c, err := s.conn()

	if err != nil {
		return err
	}

	key := s.subscriptionsKey(connectionID, nspRoomID, namespace)

	err = c.Do(ctx, c.B().Srem().Key(key).Member(topic).Build()).Error()

	if err != nil {
		return errorx.Decorate(err, "failed to remove subscription")
	}

	return nil
}

// Reads and deletes the set atomically, so concurrently added topics are either returned or kept
const unbindAllSource = `
local topics = redis.call('smembers', KEYS[1])
redis.call('del', KEYS[1])
return topics
`

func (s *RedisStore) UnbindAll(ctx context.Context, connectionID string, nspRoomID string, namespace string) ([]string, error) {
	c, err := s.conn()

	if err != nil {
		return nil, err
	}

	key := s.subscriptionsKey(connectionID, nspRoomID, namespace)

	topics, err := s.unbindScript.Exec(ctx, c, []string{key}, nil).AsStrSlice()

	if err != nil && !rueidis.IsRedisNil(err) {
		return nil, errorx.Decorate(err, "failed to unbind subscriptions")
	}

	sort.Strings(topics)

	return topics, nil
}

type membershipEvent struct {
	Event        string `json:"event"`
	TenantID     string `json:"appPid"`
	NspRoomID    string `json:"nspRoomId"`
	UID          string `json:"uid"`
	ClientID     string `json:"clientId"`
	ConnectionID string `json:"connectionId"`
	Timestamp    int64  `json:"timestamp"`
}

func (s *RedisStore) RecordJoin(ctx context.Context, session *common.Session, nspRoomID string) error {
	return s.recordMembership(ctx, "join", session, nspRoomID)
}

func (s *RedisStore) RecordLeave(ctx context.Context, session *common.Session, nspRoomID string) error {
	return s.recordMembership(ctx, "leave", session, nspRoomID)
}

func (s *RedisStore) recordMembership(ctx context.Context, event string, session *common.Session, nspRoomID string) error {
	c, err := s.conn()

	if err != nil {
		return err
	}

	data, err := json.Marshal(&membershipEvent{
		Event:        event,
		TenantID:     session.TenantID,
		NspRoomID:    nspRoomID,
		UID:          session.UID,
		ClientID:     session.ClientID,
		ConnectionID: session.ConnectionID,
		Timestamp:    time.Now().UnixMilli(),
	})

	if err != nil {
		return err
	}

	key := s.rconf.Key("metrics")
	limit := strconv.Itoa(s.config.MetricsStreamLimit)

	err = c.Do(ctx,
		c.B().Xadd().Key(key).Maxlen().Almost().Threshold(limit).Id("*").FieldValue().FieldValue("event", event).FieldValue("payload", string(data)).Build(),
	).Error()

	if err != nil {
		return errorx.Decorate(err, "failed to record %s", event)
	}

	return nil
}
