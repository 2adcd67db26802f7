package updates

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hermesbot/go-alert-service/pkg/notification"
	"github.com/redis/go-redis/v9"
)

// keyTTL bounds how long an idle seller's keys live. Every enqueue refreshes
// all four keys together, so the sequence counter never expires while a
// revision it issued is still stored.
const keyTTL = 30 * 24 * time.Hour

// enqueueScript upserts a pack: the sorted set keeps first-insertion order
// (ZADD NX), the hashes carry the latest timestamp and revision.
var enqueueScript = redis.NewScript(`
local seq = redis.call('INCR', KEYS[4])
redis.call('ZADD', KEYS[1], 'NX', seq, ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[3], ARGV[1], seq)
for i = 1, 4 do
  redis.call('PEXPIRE', KEYS[i], ARGV[3])
end
return seq
`)

// clearSnapshotScript removes packs whose revision still matches the snapshot.
var clearSnapshotScript = redis.NewScript(`
local removed = 0
for i = 1, #ARGV, 2 do
  local cur = redis.call('HGET', KEYS[3], ARGV[i])
  if cur and cur == ARGV[i + 1] then
    redis.call('ZREM', KEYS[1], ARGV[i])
    redis.call('HDEL', KEYS[2], ARGV[i])
    redis.call('HDEL', KEYS[3], ARGV[i])
    removed = removed + 1
  end
end
return removed
`)

// RedisQueue stores pending entries in Redis so they survive restarts and
// can be shared by several service instances.
type RedisQueue struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisQueue(rdb redis.UniversalClient, prefix string) *RedisQueue {
	return &RedisQueue{rdb: rdb, prefix: prefix, now: time.Now}
}

func (q *RedisQueue) Enqueue(ctx context.Context, sellerID, packID string) error {
	ts := q.now().UTC().Format(time.RFC3339Nano)
	if err := enqueueScript.Run(ctx, q.rdb, q.keys(sellerID), packID, ts, keyTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis enqueue %s/%s: %w", sellerID, packID, err)
	}
	return nil
}

func (q *RedisQueue) Get(ctx context.Context, sellerID string) ([]notification.UpdateEntry, error) {
	keys := q.keys(sellerID)

	packs, err := q.rdb.ZRange(ctx, keys[0], 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read order for %s: %w", sellerID, err)
	}
	if len(packs) == 0 {
		return []notification.UpdateEntry{}, nil
	}

	var tsCmd, revCmd *redis.SliceCmd
	_, err = q.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		tsCmd = pipe.HMGet(ctx, keys[1], packs...)
		revCmd = pipe.HMGet(ctx, keys[2], packs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis read entries for %s: %w", sellerID, err)
	}

	timestamps, revisions := tsCmd.Val(), revCmd.Val()
	entries := make([]notification.UpdateEntry, 0, len(packs))
	for i, pack := range packs {
		rawTS, ok1 := timestamps[i].(string)
		rawRev, ok2 := revisions[i].(string)
		if !ok1 || !ok2 {
			// Cleared between ZRANGE and HMGET.
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, rawTS)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp for %s/%s: %w", sellerID, pack, err)
		}
		rev, err := strconv.ParseUint(rawRev, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt revision for %s/%s: %w", sellerID, pack, err)
		}
		entries = append(entries, notification.UpdateEntry{PackID: pack, Timestamp: ts, Revision: rev})
	}
	return entries, nil
}

// Clear keeps the sequence counter so later revisions stay above any
// snapshot still held by a pending grace timer. It expires with keyTTL.
func (q *RedisQueue) Clear(ctx context.Context, sellerID string) error {
	keys := q.keys(sellerID)
	if err := q.rdb.Del(ctx, keys[0], keys[1], keys[2]).Err(); err != nil {
		return fmt.Errorf("redis clear %s: %w", sellerID, err)
	}
	return nil
}

func (q *RedisQueue) ClearSnapshot(ctx context.Context, sellerID string, snapshot []notification.UpdateEntry) error {
	if len(snapshot) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(snapshot)*2)
	for _, e := range snapshot {
		args = append(args, e.PackID, strconv.FormatUint(e.Revision, 10))
	}
	if err := clearSnapshotScript.Run(ctx, q.rdb, q.keys(sellerID), args...).Err(); err != nil {
		return fmt.Errorf("redis clear snapshot %s: %w", sellerID, err)
	}
	return nil
}

// keys returns order, timestamps, revisions and the sequence counter. The
// seller part is hash-tagged so a cluster keeps them on one slot.
func (q *RedisQueue) keys(sellerID string) []string {
	base := fmt.Sprintf("%s:{%s}", q.prefix, sellerID)
	return []string{base + ":order", base + ":ts", base + ":rev", base + ":seq"}
}
