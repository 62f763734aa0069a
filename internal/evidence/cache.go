package evidence

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// Cache is a file-backed store of per-source partial evidence. A nil
// *Cache is a disabled cache.
type Cache struct {
	dir string
	ttl time.Duration
}

func NewCache(dir string, ttl time.Duration) *Cache {
	return &Cache{dir: dir, ttl: ttl}
}

func (c *Cache) path(source, symbol string) string {
	sum := md5.Sum([]byte(symbol))
	return filepath.Join(c.dir, fmt.Sprintf("%s_%x.json", source, sum))
}

// Load fills out with a fresh cached entry. Expired entries are removed.
func (c *Cache) Load(source, symbol string, out *Evidence) bool {
	if c == nil {
		return false
	}
	p := c.path(source, symbol)
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) > c.ttl {
		os.Remove(p)
		return false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *Cache) Store(source, symbol string, part *Evidence) error {
	if c == nil {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(part, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(source, symbol), data, 0644)
}

// Retry configures exponential backoff for flaky upstream calls.
type Retry struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func DefaultRetry() Retry {
	return Retry{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
	}
}

// Do runs fn until it succeeds, the retries are spent or ctx ends.
func (r Retry) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt-1)))
			if delay > r.MaxDelay {
				delay = r.MaxDelay
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry interrupted: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
