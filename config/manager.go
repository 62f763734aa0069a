package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Manager owns the persisted config.json. Watch reloads it when another
// process edits the file; writes made through the Manager itself are
// recognised by their digest and not reloaded.
type Manager struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	cfg       Config
	written   [sha256.Size]byte
	listeners []func(Config)
	watching  bool
	stop      context.CancelFunc
	wg        sync.WaitGroup
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	logger        *zap.Logger
}

type ManagerOption func(*managerOptions)

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, "config.json")
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithInitialConfig seeds a config file that does not exist yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) { o.initialConfig = cfg }
}

func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(o *managerOptions) { o.logger = l }
}

// NewManager loads the config file, creating it from defaults (or the
// initial config) when missing.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	o := managerOptions{debounce: 300 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.configPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		o.configPath = p
	}
	if err := os.MkdirAll(filepath.Dir(o.configPath), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{path: o.configPath, debounce: o.debounce, logger: o.logger}
	cfg, err := m.loadOrCreate(o.initialConfig)
	if err != nil {
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// UpdateFromJSON applies a partial JSON document over the current config.
func (m *Manager) UpdateFromJSON(jsonStr string) error {
	cfg := m.Get()
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return m.Update(cfg)
}

// Update validates cfg, persists it and notifies listeners. An unchanged
// config is a no-op.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.written = sha256.Sum256(data)
	m.mu.Unlock()
	if err := writeFileAtomic(m.path, data); err != nil {
		return err
	}
	m.apply(cfg)
	return nil
}

// Reload re-reads the file, recreating it from defaults when it was
// removed. An invalid file leaves the current config in place.
func (m *Manager) Reload() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := *DefaultConfigWithRoot(filepath.Dir(m.path))
		if data, err = encodeConfig(cfg); err == nil {
			err = writeFileAtomic(m.path, data)
		}
		if err != nil {
			return fmt.Errorf("recreate config: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	m.mu.Lock()
	m.written = sha256.Sum256(data)
	m.mu.Unlock()

	cfg, err := m.decode(data)
	if err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	m.apply(cfg)
	return nil
}

// Watch registers onChange and, on first call, starts watching the config
// directory until ctx is done or Close is called.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	if onChange != nil {
		m.listeners = append(m.listeners, onChange)
	}
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.watching = true
	m.stop = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.watchLoop(ctx, watcher)
	return nil
}

// Close stops the watcher and waits for it to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	stop := m.stop
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer m.wg.Done()
	defer watcher.Close()

	timer := time.NewTimer(m.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if m.isConfigEvent(evt) {
				timer.Reset(m.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", zap.Error(err))
		case <-timer.C:
			if m.selfWritten() {
				continue
			}
			if err := m.Reload(); err != nil {
				m.logger.Warn("config reload failed", zap.String("path", m.path), zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) isConfigEvent(evt fsnotify.Event) bool {
	if filepath.Clean(evt.Name) != filepath.Clean(m.path) {
		return false
	}
	return evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// selfWritten reports whether the file on disk is the last one written
// or read by the Manager.
func (m *Manager) selfWritten() bool {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bytes.Equal(sum[:], m.written[:])
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

// decode lays data over the defaults, so fields absent from the file
// keep their default values.
func (m *Manager) decode(data []byte) (Config, error) {
	cfg := *DefaultConfigWithRoot(filepath.Dir(m.path))
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, m.path, err)
	}
	cfg.loadSecretsFromEnv(false)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (m *Manager) loadOrCreate(initial *Config) (Config, error) {
	data, err := os.ReadFile(m.path)
	if err == nil {
		m.written = sha256.Sum256(data)
		cfg, err := m.decode(data)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := *DefaultConfigWithRoot(filepath.Dir(m.path))
	if initial != nil {
		cfg = *initial
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if data, err = encodeConfig(cfg); err != nil {
		return Config{}, err
	}
	if err := writeFileAtomic(m.path, data); err != nil {
		return Config{}, fmt.Errorf("write initial config: %w", err)
	}
	m.written = sha256.Sum256(data)
	return cfg, nil
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "cortexanalyst", "config.json"), nil
}

func encodeConfig(cfg Config) ([]byte, error) {
	data, err := json.MarshalIndent(&cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return append(data, '\n'), nil
}

func writeConfigFile(path string, cfg Config) error {
	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes through a synced temp file renamed into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(name, path)
}
