package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

type (
	// FileStore keeps the session as <dir>/<key>.json
	FileStore struct {
		path string
	}

	// RedisStore keeps the session as a JSON string under a redis key
	RedisStore struct {
		client redis.UniversalClient
		key    string
	}

	// MemoryStore keeps the session in memory
	MemoryStore struct {
		mu sync.RWMutex
		s  *Session
	}
)

// NewFileStore creates a file store. An empty key uses StorageKey.
func NewFileStore(dir, key string) *FileStore {
	if key == "" {
		key = StorageKey
	}
	return &FileStore{path: filepath.Join(dir, key+".json")}
}

// Path returns the session file path
func (fs *FileStore) Path() string {
	return fs.path
}

// Load reads the session file. A missing file is no session.
func (fs *FileStore) Load(ctx context.Context) (*Session, error) {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return Decode(b)
}

// Save writes the session file, replacing it atomically
func (fs *FileStore) Save(ctx context.Context, s *Session) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(fs.path), "*.tmp")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tmp.Name(), fs.path)
}

// NewRedisStore creates a redis store. An empty key uses StorageKey.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = StorageKey
	}
	return &RedisStore{client: client, key: key}
}

// Load reads the session key. A missing key is no session.
func (rs *RedisStore) Load(ctx context.Context) (*Session, error) {
	b, err := rs.client.Get(ctx, rs.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", rs.key, err)
	}
	return Decode(b)
}

// Save stores the session without expiry
func (rs *RedisStore) Save(ctx context.Context, s *Session) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	if err = rs.client.Set(ctx, rs.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", rs.key, err)
	}
	return nil
}

// NewMemoryStore creates a memory store holding s
func NewMemoryStore(s *Session) *MemoryStore {
	return &MemoryStore{s: s}
}

// Load returns the held session
func (ms *MemoryStore) Load(context.Context) (*Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.s, nil
}

// Save replaces the held session
func (ms *MemoryStore) Save(_ context.Context, s *Session) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.s = s
	return nil
}
