package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"dict"}, cfg.Dictionary.Sources)
	assert.Equal(t, 4, cfg.Codec.Workers)
	assert.Equal(t, "corpse.sentences", cfg.Kafka.Topics.Sentences)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpse.yaml")
	yamlDoc := `
dictionary:
  sources: [a.txt, b.txt]
  skipUnknownTags: true
codec:
  workers: 2
redis:
  cacheTTL: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("EC_CODEC_WORKERS", "8")
	t.Setenv("EC_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, cfg.Dictionary.Sources)
	assert.True(t, cfg.Dictionary.SkipUnknownTags)
	assert.Equal(t, 8, cfg.Codec.Workers)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5432, cfg.Postgres.Port)
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	t.Setenv("EC_CODEC_WORKERS", "0")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "codec.workers")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestShippedDevelopmentConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "corpse-listeners", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, 65536, cfg.Server.MaxPayloadBytes)
}
