package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	id, err := PublishJSONToStream(ctx, client, "iv:notifications", 0, "present_blocking", map[string]int{"bed_id": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "iv:notifications", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "present_blocking", msgs[0].Values["type"])
	assert.JSONEq(t, `{"bed_id":3}`, msgs[0].Values["data"].(string))
}

func TestPublishToStream_ConvertsValues(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	_, err := PublishToStream(ctx, client, "s", 100, map[string]interface{}{
		"i": 7,
		"f": 1.5,
		"b": true,
		"m": map[string]string{"k": "v"},
	})
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, "s", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "7", msgs[0].Values["i"])
	assert.Equal(t, "1.5", msgs[0].Values["f"])
	assert.Equal(t, "true", msgs[0].Values["b"])
	assert.Equal(t, `{"k":"v"}`, msgs[0].Values["m"])
}
