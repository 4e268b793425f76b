package attack

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

//go:embed data/enterprise_attack.json
var bundledDataset []byte

// Source loads the taxonomy dataset.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Technique, error)
}

// EmbeddedSource serves the dataset bundled into the binary.
type EmbeddedSource struct{}

// Name identifies the source in logs.
func (EmbeddedSource) Name() string { return "embedded" }

// Load decodes the bundled dataset.
func (EmbeddedSource) Load(_ context.Context) ([]Technique, error) {
	return decodeJSON(bundledDataset)
}

// FileSource reads a JSON or YAML dataset from disk.
type FileSource struct {
	Path string
}

// Name identifies the source in logs.
func (s FileSource) Name() string { return "file:" + s.Path }

// Load reads and decodes the dataset file.
func (s FileSource) Load(_ context.Context) ([]Technique, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("attack: failed to read dataset: %w", err)
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		var techniques []Technique
		if err := yaml.Unmarshal(data, &techniques); err != nil {
			return nil, fmt.Errorf("attack: failed to parse dataset %s: %w", s.Path, err)
		}
		return techniques, nil
	default:
		return decodeJSON(data)
	}
}

// RedisConfig holds the connection settings for a shared dataset in Redis.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Key         string        `yaml:"key"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// DefaultRedisKey is the key holding the dataset when none is configured.
const DefaultRedisKey = "contentctl:attack:enterprise"

// redisGetter is the subset of redis.Cmdable RedisSource needs.
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSource reads a JSON dataset stored under a single Redis key, so that
// many build workers on different hosts share one published dataset.
type RedisSource struct {
	client redisGetter
	key    string
}

// NewRedisSource connects to Redis and verifies the connection.
func NewRedisSource(ctx context.Context, cfg RedisConfig) (*RedisSource, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("attack: failed to connect to redis: %w", err)
	}

	return newRedisSource(client, cfg.Key), nil
}

func newRedisSource(client redisGetter, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// Name identifies the source in logs.
func (s *RedisSource) Name() string { return "redis:" + s.key }

// Load fetches and decodes the dataset.
func (s *RedisSource) Load(ctx context.Context) ([]Technique, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("attack: dataset key %q not found", s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("attack: failed to read dataset from redis: %w", err)
	}
	return decodeJSON(data)
}

// redisSetter is the subset of redis.Cmdable Publish needs.
type redisSetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Publish stores techniques under key so RedisSource readers can load them.
func Publish(ctx context.Context, client redisSetter, key string, techniques []Technique) error {
	if key == "" {
		key = DefaultRedisKey
	}
	data, err := json.Marshal(techniques)
	if err != nil {
		return fmt.Errorf("attack: failed to encode dataset: %w", err)
	}
	return client.Set(ctx, key, data, 0).Err()
}

func decodeJSON(data []byte) ([]Technique, error) {
	var techniques []Technique
	if err := json.Unmarshal(data, &techniques); err != nil {
		return nil, fmt.Errorf("attack: failed to parse dataset: %w", err)
	}
	return techniques, nil
}
