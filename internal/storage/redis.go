// ABOUTME: Redis Repository keeping entries as JSON with a day index and sorted set.
// ABOUTME: SETNX on the day key claims a calendar day atomically across clients.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/harperreed/biomarkers/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "biomarkers:"

// raiseCounter sets KEYS[1] to ARGV[1] unless it already holds a larger value.
var raiseCounter = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local target = tonumber(ARGV[1])
if target > current then
	redis.call("SET", KEYS[1], target)
	return target
end
return current
`)

// RedisStore stores entries in Redis.
//
// Keys, under the prefix:
//
//	last_id        counter, INCR yields the next id
//	day:<date>     id of the entry for that day
//	entry:<id>     JSON entry
//	by_date        sorted set of ids scored by YYYYMMDD
type RedisStore struct {
	client *redis.Client
	prefix string
}

// Compile-time check that RedisStore implements Repository.
var _ Repository = (*RedisStore)(nil)

// OpenRedis connects to the server at addr and verifies it answers.
func OpenRedis(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		MaxRetries: 3,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wraps an existing client. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) lastIDKey() string { return s.prefix + "last_id" }
func (s *RedisStore) byDateKey() string { return s.prefix + "by_date" }

func (s *RedisStore) dayKey(day models.CalendarDay) string {
	return s.prefix + "day:" + day.String()
}

func (s *RedisStore) entryKey(id int64) string {
	return s.prefix + "entry:" + strconv.FormatInt(id, 10)
}

// List reads ids from the sorted set and fetches their entries in one MGET.
func (s *RedisStore) List(ctx context.Context) ([]*models.Entry, error) {
	ids, err := s.client.ZRange(ctx, s.byDateKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	entries := make([]*models.Entry, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + "entry:" + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		e, err := decodeRedisEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", ids[i], err)
		}
		entries = append(entries, e)
	}
	models.SortEntries(entries)
	return entries, nil
}

// Get retrieves an entry by id.
func (s *RedisStore) Get(ctx context.Context, id int64) (*models.Entry, error) {
	raw, err := s.client.Get(ctx, s.entryKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	e, err := decodeRedisEntry(raw)
	if err != nil {
		return nil, fmt.Errorf("decode entry %d: %w", id, err)
	}
	return e, nil
}

// FindByDate resolves the day key to an id and loads the entry.
func (s *RedisStore) FindByDate(ctx context.Context, day models.CalendarDay) (*models.Entry, error) {
	id, err := s.client.Get(ctx, s.dayKey(day)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entry for %s: %w", day, err)
	}
	return s.Get(ctx, id)
}

// Create allocates an id, claims the day with SETNX and then writes the
// entry and its index in one MULTI block. A lost claim burns the id.
func (s *RedisStore) Create(ctx context.Context, day models.CalendarDay, m models.Measurements) (*models.Entry, error) {
	if err := validateNew(day, m); err != nil {
		return nil, err
	}

	id, err := s.client.Incr(ctx, s.lastIDKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate id: %w", err)
	}

	claimed, err := s.client.SetNX(ctx, s.dayKey(day), id, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create entry for %s: %w", day, err)
	}
	if !claimed {
		return nil, fmt.Errorf("create entry for %s: %w", day, ErrDuplicateDate)
	}

	e := models.NewEntry(day, m)
	e.ID = id
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(id), data, 0)
		pipe.ZAdd(ctx, s.byDateKey(), redis.Z{Score: float64(day.Ordinal()), Member: id})
		return nil
	})
	if err != nil {
		// Release the day so a retry can succeed.
		_ = s.client.Del(ctx, s.dayKey(day)).Err()
		return nil, fmt.Errorf("create entry for %s: %w", day, err)
	}
	return e, nil
}

// Delete removes the entry, its day key and its sorted set member.
func (s *RedisStore) Delete(ctx context.Context, id int64) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	if e == nil {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.entryKey(id), s.dayKey(e.Date))
		pipe.ZRem(ctx, s.byDateKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return nil
}

// Import writes entries with their ids and raises the id counter to the
// highest imported id.
func (s *RedisStore) Import(ctx context.Context, entries []*models.Entry) error {
	if err := validateImport(entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		n, err := s.client.Exists(ctx, s.entryKey(e.ID)).Result()
		if err != nil {
			return fmt.Errorf("import entry %d: %w", e.ID, err)
		}
		if n > 0 {
			return fmt.Errorf("import entry %d: %w", e.ID, ErrDuplicateID)
		}
		n, err = s.client.Exists(ctx, s.dayKey(e.Date)).Result()
		if err != nil {
			return fmt.Errorf("import entry %d: %w", e.ID, err)
		}
		if n > 0 {
			return fmt.Errorf("import entry for %s: %w", e.Date, ErrDuplicateDate)
		}
	}

	var maxID int64
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode entry %d: %w", e.ID, err)
			}
			pipe.Set(ctx, s.entryKey(e.ID), data, 0)
			pipe.Set(ctx, s.dayKey(e.Date), e.ID, 0)
			pipe.ZAdd(ctx, s.byDateKey(), redis.Z{Score: float64(e.Date.Ordinal()), Member: e.ID})
			if e.ID > maxID {
				maxID = e.ID
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("import entries: %w", err)
	}

	if err := raiseCounter.Run(ctx, s.client, []string{s.lastIDKey()}, maxID).Err(); err != nil {
		return fmt.Errorf("advance id counter: %w", err)
	}
	return nil
}

// NextID returns one past the last allocated id.
func (s *RedisStore) NextID(ctx context.Context) (int64, error) {
	last, err := s.client.Get(ctx, s.lastIDKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read id counter: %w", err)
	}
	return last + 1, nil
}

// AdvanceNextID raises the last allocated id to next-1.
func (s *RedisStore) AdvanceNextID(ctx context.Context, next int64) error {
	if err := raiseCounter.Run(ctx, s.client, []string{s.lastIDKey()}, next-1).Err(); err != nil {
		return fmt.Errorf("advance id counter: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRedisEntry(raw string) (*models.Entry, error) {
	var e models.Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, err
	}
	return &e, nil
}
