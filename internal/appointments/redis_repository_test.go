package appointments

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisRepository(t *testing.T, opts ...Option) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client, opts...), mr
}

func TestRedisRepositoryContract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T, opts ...Option) Repository {
		repo, _ := newMiniredisRepository(t, opts...)
		return repo
	})
}

func TestRedisRepositoryPersistsIdempotencyKey(t *testing.T) {
	repo, mr := newMiniredisRepository(t)
	appt, err := repo.Create(context.Background(), CreateRequest{
		PatientID: "u1", PatientName: "Sarah", SymptomsSummary: "Headache", IdempotencyKey: "sess-9",
	})
	require.NoError(t, err)

	id, err := mr.Get(redisIdemKeyPref + "sess-9")
	require.NoError(t, err)
	assert.Equal(t, appt.ID, id)

	got, err := repo.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "sess-9", got.IdempotencyKey)
	assert.Equal(t, int64(1), got.Sequence)
}

func TestRedisRepositoryCorruptRecord(t *testing.T) {
	repo, mr := newMiniredisRepository(t)
	require.NoError(t, mr.Set(redisRecordPref+"appt-bad", "{not json"))
	_, err := repo.Get(context.Background(), "appt-bad")
	require.ErrorContains(t, err, "decode record")
}

func TestRedisRepositoryReclaimsDanglingIdempotencyKey(t *testing.T) {
	repo, mr := newMiniredisRepository(t)
	require.NoError(t, mr.Set(redisIdemKeyPref+"sess-2", "appt-missing"))

	appt, err := repo.Create(context.Background(), CreateRequest{
		PatientID: "u1", PatientName: "Sarah", SymptomsSummary: "Fever", IdempotencyKey: "sess-2",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "appt-missing", appt.ID)

	id, err := mr.Get(redisIdemKeyPref + "sess-2")
	require.NoError(t, err)
	assert.Equal(t, appt.ID, id)

	again, err := repo.Create(context.Background(), CreateRequest{
		PatientID: "u1", PatientName: "Sarah", SymptomsSummary: "Fever", IdempotencyKey: "sess-2",
	})
	require.NoError(t, err)
	assert.Equal(t, appt.ID, again.ID)

	list, err := repo.ListForDoctor(context.Background(), DefaultDoctorID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRedisRepositoryConcurrentKeyedCreates(t *testing.T) {
	repo, _ := newMiniredisRepository(t)

	const workers = 8
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appt, err := repo.Create(context.Background(), CreateRequest{
				PatientID: "u1", PatientName: "Sarah", SymptomsSummary: "Fever", IdempotencyKey: "sess-race",
			})
			if err != nil {
				ids <- "error: " + err.Error()
				return
			}
			ids <- appt.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1, "all creates share one record: %v", seen)

	list, err := repo.ListForDoctor(context.Background(), DefaultDoctorID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
