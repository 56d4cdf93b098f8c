package bootstrap

import (
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/internal/adapters/config"
	redisclient "tiergate/internal/adapters/redis"
	"tiergate/internal/agents"
	"tiergate/pkg/logger"
)

func adapterTestContainer(t *testing.T) *Container {
	t.Helper()
	c := NewContainer()
	t.Cleanup(c.Cancel)
	c.Log = logger.Nop()
	c.Config = &config.Config{
		AI: config.AIConfig{Provider: "openai", OpenAIKey: "sk-test"},
		Sessions: config.SessionConfig{
			LockTTL:  time.Minute,
			LockWait: time.Second,
		},
	}
	return c
}

func TestMustInitAdapters_SessionLocker(t *testing.T) {
	tests := []struct {
		name      string
		withRedis bool
		want      agents.SessionLocker
	}{
		{"redis configured", true, &agents.RedisLocker{}},
		{"no redis", false, &agents.LocalLocker{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := adapterTestContainer(t)
			if tt.withRedis {
				// go-redis dials lazily, nothing listens here
				rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
				t.Cleanup(func() { _ = rdb.Close() })
				c.Redis = redisclient.NewFromRedis(rdb)
			}

			c.MustInitAdapters()

			require.NotNil(t, c.Adapters.SessionLocker)
			assert.IsType(t, tt.want, c.Adapters.SessionLocker)
			assert.NotNil(t, c.Adapters.Model)
			assert.Nil(t, c.Adapters.KafkaProducer)
			assert.Nil(t, c.Adapters.TelegramBot)
		})
	}
}
