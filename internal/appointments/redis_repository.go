package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	redisKeyPrefix   = "healthvoice:appointments:"
	redisSeqKey      = redisKeyPrefix + "seq"
	redisOrderKey    = redisKeyPrefix + "order"
	redisRecordPref  = redisKeyPrefix + "record:"
	redisIdemKeyPref = redisKeyPrefix + "idem:"
)

// redisRecord keeps the idempotency key, which the public JSON omits.
type redisRecord struct {
	Appointment
	Key string `json:"idempotency_key,omitempty"`
}

// RedisRepository stores each appointment as a JSON value and keeps
// creation order in a sorted set. Keyed creates run as one Lua script and
// updates use WATCH for optimistic locking.
type RedisRepository struct {
	client *redis.Client
	opts   Options
}

// NewRedisRepository creates a Redis-backed store.
func NewRedisRepository(client *redis.Client, opts ...Option) *RedisRepository {
	if client == nil {
		panic("appointments: redis client cannot be nil")
	}
	return &RedisRepository{client: client, opts: newOptions(opts...)}
}

// createKeyedScript claims the idempotency key and writes the record in one
// step. A claim whose record is missing is treated as free.
// KEYS: idem key, record key, order key. ARGV: id, record JSON, sequence, record prefix.
var createKeyedScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if existing and redis.call('EXISTS', ARGV[4] .. existing) == 1 then
  return existing
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return ARGV[1]
`)

// Create inserts a new appointment unless its idempotency key was seen.
func (r *RedisRepository) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	req, err := normalizeCreate(req)
	if err != nil {
		return nil, err
	}
	ctx, span := storeTracer.Start(ctx, "appointments.redis.create")
	defer span.End()

	if req.IdempotencyKey != "" {
		if existing, err := r.lookupKey(ctx, req.IdempotencyKey); err != nil || existing != nil {
			return existing, err
		}
	}

	seq, err := r.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: allocate sequence: %w", err)
	}
	appt := r.opts.build(req, seq)

	data, err := json.Marshal(redisRecord{Appointment: appt, Key: appt.IdempotencyKey})
	if err != nil {
		return nil, fmt.Errorf("appointments: marshal record: %w", err)
	}

	if appt.IdempotencyKey == "" {
		if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisRecordPref+appt.ID, data, 0)
			pipe.ZAdd(ctx, redisOrderKey, redis.Z{Score: float64(seq), Member: appt.ID})
			return nil
		}); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("appointments: persist record: %w", err)
		}
		return &appt, nil
	}

	keys := []string{redisIdemKeyPref + appt.IdempotencyKey, redisRecordPref + appt.ID, redisOrderKey}
	winner, err := createKeyedScript.Run(ctx, r.client, keys, appt.ID, data, seq, redisRecordPref).Text()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: persist keyed record: %w", err)
	}
	if winner != appt.ID {
		return r.Get(ctx, winner)
	}
	return &appt, nil
}

// lookupKey returns the record claimed by key, or nil when the key is unused
// or points at a record that was never written.
func (r *RedisRepository) lookupKey(ctx context.Context, key string) (*Appointment, error) {
	id, err := r.client.Get(ctx, redisIdemKeyPref+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: lookup idempotency key: %w", err)
	}
	appt, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return appt, err
}

// Update replaces status and notes inside a WATCH transaction.
func (r *RedisRepository) Update(ctx context.Context, a Appointment) (*Appointment, error) {
	ctx, span := storeTracer.Start(ctx, "appointments.redis.update")
	defer span.End()
	span.SetAttributes(attribute.String("healthvoice.appointment_id", a.ID))

	key := redisRecordPref + a.ID
	var next Appointment
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := decodeRecord(tx.Get(ctx, key).Bytes())
		if err != nil {
			return err
		}
		if err := checkUpdate(stored.Appointment, a); err != nil {
			return err
		}
		stored.Status = a.Status
		stored.Notes = a.Notes
		stored.Version++
		stored.UpdatedAt = r.opts.Now().UTC()
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("appointments: marshal record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		next = stored.Appointment
		return err
	}, key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	case errors.Is(err, redis.TxFailedErr):
		return nil, fmt.Errorf("%w: %s changed concurrently", ErrConflict, a.ID)
	case err != nil:
		span.RecordError(err)
		return nil, err
	}
	return &next, nil
}

// Get fetches one appointment.
func (r *RedisRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	rec, err := decodeRecord(r.client.Get(ctx, redisRecordPref+id).Bytes())
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec.Appointment, nil
}

// ListForDoctor returns appointments in doctor order.
func (r *RedisRepository) ListForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	ctx, span := storeTracer.Start(ctx, "appointments.redis.list")
	defer span.End()

	ids, err := r.client.ZRange(ctx, redisOrderKey, 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: list order: %w", err)
	}
	out := []Appointment{}
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisRecordPref + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: list records: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(raw), nil)
		if err != nil {
			return nil, err
		}
		if r.opts.includes(rec.Appointment, doctorID) {
			out = append(out, rec.Appointment)
		}
	}
	return SortForDoctor(out), nil
}

func decodeRecord(data []byte, err error) (redisRecord, error) {
	if err != nil {
		return redisRecord{}, err
	}
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return redisRecord{}, fmt.Errorf("appointments: decode record: %w", err)
	}
	rec.IdempotencyKey = rec.Key
	return rec, nil
}
