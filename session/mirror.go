package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror persists the token outside process memory.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Load returns (Token{}, false, nil) when nothing is stored.
// - Clear of an empty mirror is not an error.
type Mirror interface {
	Load(ctx context.Context) (Token, bool, error)
	Save(ctx context.Context, tok Token) error
	Clear(ctx context.Context) error
}

// MemoryMirror keeps the token in memory. Several Sessions sharing one
// MemoryMirror behave like instances of one browser tab.
type MemoryMirror struct {
	mu    sync.Mutex
	token Token
	held  bool
}

// NewMemoryMirror creates an empty MemoryMirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{}
}

// Load implements Mirror.
func (m *MemoryMirror) Load(context.Context) (Token, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.held, nil
}

// Save implements Mirror.
func (m *MemoryMirror) Save(_ context.Context, tok Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.held = tok, true
	return nil
}

// Clear implements Mirror.
func (m *MemoryMirror) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.held = Token{}, false
	return nil
}

// FileMirror stores the token as JSON in a file readable only by its owner.
type FileMirror struct {
	path string
	mu   sync.Mutex
}

// NewFileMirror creates a FileMirror at path. The file is created on the
// first Save.
func NewFileMirror(path string) *FileMirror {
	return &FileMirror{path: path}
}

// Load implements Mirror.
func (m *FileMirror) Load(context.Context) (Token, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, err
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, false, fmt.Errorf("decode %s: %w", m.path, err)
	}
	return tok, tok.Value != "", nil
}

// Save implements Mirror. The file is replaced atomically.
func (m *FileMirror) Save(_ context.Context, tok Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".session-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), m.path)
}

// Clear implements Mirror.
func (m *FileMirror) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RedisMirror stores the token under one Redis key whose TTL matches the
// token's remaining lifetime.
type RedisMirror struct {
	client redis.Cmdable
	key    string
	now    func() time.Time
}

// NewRedisMirror creates a RedisMirror storing the token at key.
func NewRedisMirror(client redis.Cmdable, key string) *RedisMirror {
	return &RedisMirror{client: client, key: key, now: time.Now}
}

// Load implements Mirror.
func (m *RedisMirror) Load(ctx context.Context) (Token, bool, error) {
	val, err := m.client.Get(ctx, m.key).Result()
	if errors.Is(err, redis.Nil) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("redis get %s: %w", m.key, err)
	}

	var tok Token
	if err := json.Unmarshal([]byte(val), &tok); err != nil {
		return Token{}, false, fmt.Errorf("decode %s: %w", m.key, err)
	}
	return tok, tok.Value != "", nil
}

// Save implements Mirror. A token already past its expiry deletes the key.
func (m *RedisMirror) Save(ctx context.Context, tok Token) error {
	ttl := tok.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return m.Clear(ctx)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := m.client.Set(ctx, m.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", m.key, err)
	}
	return nil
}

// Clear implements Mirror.
func (m *RedisMirror) Clear(ctx context.Context) error {
	if err := m.client.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", m.key, err)
	}
	return nil
}
