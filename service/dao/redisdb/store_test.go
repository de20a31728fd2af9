package redisdb

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/vigil/service/dao"
)

type history struct {
	StrategyID string `json:"strategyId"`
	Outcomes   []bool `json:"outcomes"`
}

func historyKey(h *history) string { return h.StrategyID }

func TestStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	s, err := New[string, history](client, "vigil:histories", historyKey)
	require.NoError(t, err)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	records := map[string]*history{
		"s1": {StrategyID: "s1", Outcomes: []bool{false, false}},
		"s2": {StrategyID: "s2", Outcomes: []bool{true}},
	}
	require.NoError(t, s.SaveAll(ctx, records))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, records, loaded)

	require.NoError(t, s.SaveAll(ctx, map[string]*history{"s2": records["s2"]}))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	require.NoError(t, s.SaveAll(ctx, map[string]*history{}))
	assert.False(t, mr.Exists("vigil:histories"))

	mr.HSet("vigil:histories", "bad", "{")
	_, err = s.Load(ctx)
	assert.True(t, errors.Is(err, dao.ErrCorrupt))
}

func TestNew_Validation(t *testing.T) {
	_, err := New[string, history](nil, "h", historyKey)
	assert.Error(t, err)
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()
	_, err = New[string, history](client, "", historyKey)
	assert.Error(t, err)
}
