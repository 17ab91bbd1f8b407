// Package state persists client-local settings between runs: the signed-in
// user, session expiry, locale, last selected text and tracked tasks.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	KeyUser          = "user"
	KeySessionExpiry = "sessionExpiryS"
	KeyLocale        = "locale"
	KeyText          = "text"
	KeyTasks         = "tasks"
	KeyAuthCookies   = "authCookies"
)

var ErrNotFound = errors.New("state: key not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// SaveJSON stores v as JSON under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// LoadJSON decodes the JSON stored under key into v. It returns ErrNotFound
// when nothing is stored.
func LoadJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Session wraps a Store with typed accessors for the well-known keys.
type Session struct {
	Store Store
}

// User decodes the stored user into v. ok is false when no user is stored.
func (s Session) User(ctx context.Context, v any) (bool, error) {
	err := LoadJSON(ctx, s.Store, KeyUser, v)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// SetUser stores the signed-in user and the session expiry.
func (s Session) SetUser(ctx context.Context, user any, expiry time.Time) error {
	if err := SaveJSON(ctx, s.Store, KeyUser, user); err != nil {
		return err
	}
	return s.Store.Set(ctx, KeySessionExpiry, strconv.FormatInt(expiry.Unix(), 10))
}

// ClearUser forgets the signed-in user and the session cookies.
func (s Session) ClearUser(ctx context.Context) error {
	for _, key := range []string{KeyUser, KeySessionExpiry, KeyAuthCookies} {
		if err := s.Store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AuthCookies returns the stored session cookies, or nil if there are none.
func (s Session) AuthCookies(ctx context.Context) ([]*http.Cookie, error) {
	var stored []storedCookie
	if err := LoadJSON(ctx, s.Store, KeyAuthCookies, &stored); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return cookies, nil
}

func (s Session) SetAuthCookies(ctx context.Context, cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	return SaveJSON(ctx, s.Store, KeyAuthCookies, stored)
}

// SessionExpiry returns the stored expiry, or the zero time if none is set.
func (s Session) SessionExpiry(ctx context.Context) (time.Time, error) {
	raw, err := s.Store.Get(ctx, KeySessionExpiry)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", KeySessionExpiry, err)
	}
	return time.Unix(secs, 0), nil
}

// SessionValid reports whether a stored session has not yet expired.
func (s Session) SessionValid(ctx context.Context, now time.Time) bool {
	exp, err := s.SessionExpiry(ctx)
	return err == nil && !exp.IsZero() && now.Before(exp)
}

func (s Session) Locale(ctx context.Context) string {
	v, _ := s.Store.Get(ctx, KeyLocale)
	return v
}

func (s Session) SetLocale(ctx context.Context, locale string) error {
	return s.Store.Set(ctx, KeyLocale, locale)
}

// Text returns the slug of the last selected text.
func (s Session) Text(ctx context.Context) string {
	v, _ := s.Store.Get(ctx, KeyText)
	return v
}

func (s Session) SetText(ctx context.Context, slug string) error {
	return s.Store.Set(ctx, KeyText, slug)
}
