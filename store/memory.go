package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/relaycast/relaycast-go/common"
)

func credentialKey(tenantID string, keyID string) string {
	return tenantID + "." + keyID
}

// MemoryCredentials is a credential store backed by a static key set
type MemoryCredentials struct {
	keys map[string]StaticKey
	mu   sync.RWMutex

	acquired int64
	released int64
}

var _ CredentialPool = (*MemoryCredentials)(nil)

func NewMemoryCredentials(keys ...StaticKey) *MemoryCredentials {
	m := &MemoryCredentials{keys: make(map[string]StaticKey)}

	for _, key := range keys {
		m.Add(key)
	}

	return m
}

func (m *MemoryCredentials) Add(key StaticKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys[credentialKey(key.TenantID, key.KeyID)] = key
}

func (m *MemoryCredentials) Acquire(ctx context.Context) (CredentialConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	atomic.AddInt64(&m.acquired, 1)

	return &memoryCredentialConn{store: m}, nil
}

// Outstanding returns the number of acquired and not yet released connections
func (m *MemoryCredentials) Outstanding() int64 {
	return atomic.LoadInt64(&m.acquired) - atomic.LoadInt64(&m.released)
}

func (m *MemoryCredentials) lookup(tenantID string, keyID string) (StaticKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[credentialKey(tenantID, keyID)]

	if !ok {
		return key, common.ErrNotFound.New("key not found")
	}

	return key, nil
}

type memoryCredentialConn struct {
	store    *MemoryCredentials
	released int32
}

func (c *memoryCredentialConn) SecretKey(ctx context.Context, tenantID string, keyID string) (string, error) {
	key, err := c.store.lookup(tenantID, keyID)

	if err != nil {
		return "", err
	}

	return key.Secret, nil
}

func (c *memoryCredentialConn) Permissions(ctx context.Context, tenantID string, keyID string) (common.Permissions, error) {
	key, err := c.store.lookup(tenantID, keyID)

	if err != nil {
		return nil, err
	}

	return key.Permissions, nil
}

func (c *memoryCredentialConn) Release() {
	if atomic.CompareAndSwapInt32(&c.released, 0, 1) {
		atomic.AddInt64(&c.store.released, 1)
	}
}

// Memory implements presence, history and subscription stores in memory
type Memory struct {
	presence      map[string]map[string]*Member
	history       map[string][]*common.Message
	subscriptions map[string]map[string]struct{}

	historyLimit int

	mu sync.Mutex
}

var (
	_ PresenceStore     = (*Memory)(nil)
	_ HistoryStore      = (*Memory)(nil)
	_ SubscriptionStore = (*Memory)(nil)
)

func NewMemory(historyLimit int) *Memory {
	return &Memory{
		presence:      make(map[string]map[string]*Member),
		history:       make(map[string][]*common.Message),
		subscriptions: make(map[string]map[string]struct{}),
		historyLimit:  historyLimit,
	}
}

func (m *Memory) AddMember(ctx context.Context, nspRoomID string, member *Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.presence[nspRoomID]; !ok {
		m.presence[nspRoomID] = make(map[string]*Member)
	}

	m.presence[nspRoomID][member.UID] = member

	return nil
}

func (m *Memory) RemoveMember(ctx context.Context, nspRoomID string, uid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.presence[nspRoomID]

	if !ok {
		return false, nil
	}

	if _, ok := members[uid]; !ok {
		return false, nil
	}

	delete(members, uid)

	if len(members) == 0 {
		delete(m.presence, nspRoomID)
	}

	return true, nil
}

func (m *Memory) Members(ctx context.Context, nspRoomID string) ([]*Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]*Member, 0, len(m.presence[nspRoomID]))

	for _, member := range m.presence[nspRoomID] {
		members = append(members, member)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].UID < members[j].UID })

	return members, nil
}

func (m *Memory) AppendMessage(ctx context.Context, nspRoomID string, msg *common.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := append(m.history[nspRoomID], msg)

	if m.historyLimit > 0 && len(messages) > m.historyLimit {
		messages = messages[len(messages)-m.historyLimit:]
	}

	m.history[nspRoomID] = messages

	return nil
}

func (m *Memory) Messages(ctx context.Context, nspRoomID string, since int64, limit int) ([]*common.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var messages []*common.Message

	for _, msg := range m.history[nspRoomID] {
		if msg.Timestamp < since {
			continue
		}

		messages = append(messages, msg)
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

func subscriptionsKey(connectionID string, nspRoomID string, namespace string) string {
	return connectionID + "|" + nspRoomID + "|" + namespace
}

func (m *Memory) AddSubscription(ctx context.Context, connectionID string, nspRoomID string, namespace string, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := subscriptionsKey(connectionID, nspRoomID, namespace)

	if _, ok := m.subscriptions[key]; !ok {
		m.subscriptions[key] = make(map[string]struct{})
	}

	m.subscriptions[key][topic] = struct{}{}

	return nil
}

func (m *Memory) RemoveSubscription(ctx context.Context, connectionID string, nspRoomID string, namespace string, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := subscriptionsKey(connectionID, nspRoomID, namespace)

	delete(m.subscriptions[key], topic)

	if len(m.subscriptions[key]) == 0 {
		delete(m.subscriptions, key)
	}

	return nil
}

func (m *Memory) UnbindAll(ctx context.Context, connectionID string, nspRoomID string, namespace string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := subscriptionsKey(connectionID, nspRoomID, namespace)

	topics := make([]string, 0, len(m.subscriptions[key]))

	for topic := range m.subscriptions[key] {
		topics = append(topics, topic)
	}

	delete(m.subscriptions, key)

	sort.Strings(topics)

	return topics, nil
}
