// Package routing maps room identifiers to broker routing keys and shard queues.
//
// Shard placement must stay bit-compatible with every other gateway instance
// computing it from the same room set, so the hash works on UTF-16 code units
// with 32-bit signed wraparound arithmetic.
package routing

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/joomcode/errorx"
	"github.com/relaycast/relaycast-go/common"
)

const (
	KeySeparator   = "."
	wildcardSuffix = ".#"
	queuePrefix    = "queue"
)

// PublishKey returns the exact routing key to publish room messages with:
// "tenant:room" -> "tenant.room"
func PublishKey(room string) string {
	return strings.ReplaceAll(room, common.RoomScopeSeparator, KeySeparator)
}

// BindingKey returns the routing key used to bind a shard queue for the room:
// "tenant:room" -> "tenant.room.#". Only the first two segments are used,
// so "tenant:room:sub" shares the "tenant.room.#" binding.
func BindingKey(room string) string {
	segments := strings.SplitN(room, common.RoomScopeSeparator, 3)

	namespace := ""

	if len(segments) > 1 {
		namespace = segments[1]
	}

	return segments[0] + KeySeparator + namespace + wildcardSuffix
}

// ShardIndex returns the shard for the routing key in [0, queueCount).
// queueCount must be positive (validated at startup).
func ShardIndex(key string, queueCount int) int {
	var hash int32

	for _, cu := range utf16.Encode([]rune(key)) {
		hash = (hash << 5) - hash + int32(cu)
	}

	n := int64(queueCount)

	return int(((int64(hash) % n) + n) % n)
}

// QueueName returns the name of the instance's shard queue
func QueueName(instanceID string, index int) string {
	return fmt.Sprintf("%s-%s-%d", instanceID, queuePrefix, index)
}

// Entry describes the binding of a room to the instance's shard queue
type Entry struct {
	Room  string
	Key   string
	Queue string
}

// Codec binds the routing functions to the instance configuration
type Codec struct {
	instanceID string
	queueCount int
}

// NewCodec returns a codec for the instance. Queue count is immutable for the lifetime of the process.
func NewCodec(instanceID string, queueCount int) (*Codec, error) {
	if queueCount <= 0 {
		return nil, errorx.IllegalArgument.New("queue count must be positive, got %d", queueCount)
	}

	if instanceID == "" {
		return nil, errorx.IllegalArgument.New("instance id is required")
	}

	return &Codec{instanceID: instanceID, queueCount: queueCount}, nil
}

// QueueCount returns the number of shard queues per instance
func (c *Codec) QueueCount() int {
	return c.queueCount
}

// Queues returns the names of all the instance's shard queues
func (c *Codec) Queues() []string {
	queues := make([]string, c.queueCount)

	for i := range queues {
		queues[i] = QueueName(c.instanceID, i)
	}

	return queues
}

// Entry returns the binding entry for the room
func (c *Codec) Entry(room string) Entry {
	key := BindingKey(room)

	return Entry{
		Room:  room,
		Key:   key,
		Queue: QueueName(c.instanceID, ShardIndex(key, c.queueCount)),
	}
}
