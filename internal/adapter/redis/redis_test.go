package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/utils"
)

func TestQueueRepo_PushPop(t *testing.T) {
	db, mock := redismock.NewClientMock()
	repo := NewQueueRepo(db)
	ctx := context.TODO()

	req := &entity.IngestRequest{ID: "abc", URL: "https://a.test/post", Collection: "alpha"}
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	mock.ExpectLPush(ingestQueueKey, string(payload)).SetVal(1)
	assert.NoError(t, repo.Push(ctx, req))

	mock.ExpectRPop(ingestQueueKey).SetVal(string(payload))
	got, err := repo.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, "alpha", got.Collection)

	mock.ExpectLLen(ingestQueueKey).SetVal(0)
	size, err := repo.Size(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), size)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestQueueRepo_PopEmpty(t *testing.T) {
	db, mock := redismock.NewClientMock()
	repo := NewQueueRepo(db)
	ctx := context.TODO()

	mock.ExpectRPop(ingestQueueKey).RedisNil()
	_, err := repo.Pop(ctx)
	assert.ErrorIs(t, err, repository.ErrQueueEmpty)

	mock.ExpectRPop(ingestQueueKey).SetErr(errors.New("redis down"))
	_, err = repo.Pop(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrQueueEmpty)

	mock.ExpectRPop(ingestQueueKey).SetVal("not json")
	_, err = repo.Pop(ctx)
	assert.ErrorContains(t, err, "failed to decode")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSourceCacheRepo(t *testing.T) {
	db, mock := redismock.NewClientMock()
	repo := NewSourceCacheRepo(db)
	ctx := context.TODO()
	url := "https://a.test/post"
	key := sourceKeyPrefix + utils.HashURL(url)

	mock.ExpectSetEx(key, "42", 48*time.Hour).SetVal("OK")
	assert.NoError(t, repo.Set(ctx, url, 42, 48*time.Hour))

	mock.ExpectGet(key).SetVal("42")
	id, err := repo.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	mock.ExpectDel(key).SetVal(1)
	assert.NoError(t, repo.Remove(ctx, url))

	mock.ExpectGet(key).RedisNil()
	_, err = repo.Get(ctx, url)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	mock.ExpectGet(key).SetVal("garbage")
	_, err = repo.Get(ctx, url)
	assert.ErrorContains(t, err, "corrupt source cache entry")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSourceCacheRepo_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	repo := NewSourceCacheRepo(db)

	mock.ExpectGet(sourceKeyPrefix + utils.HashURL("u")).SetErr(redis.ErrClosed)
	_, err := repo.Get(context.TODO(), "u")
	assert.ErrorIs(t, err, redis.ErrClosed)
}

func TestSourceCacheRepo_SetWithoutExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	repo := NewSourceCacheRepo(db)
	url := "https://a.test/post"

	mock.ExpectSet(sourceKeyPrefix+utils.HashURL(url), "7", 0).SetVal("OK")
	assert.NoError(t, repo.Set(context.TODO(), url, 7, 0))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
