package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"persai/pkg/logging"
)

// DefaultDebounceInterval is the time to wait after the last file change
// before reloading. Editors often produce several events per save.
const DefaultDebounceInterval = 500 * time.Millisecond

// Manager holds the live configuration and reloads it when config.yaml
// changes on disk. Reads are cheap and safe from any goroutine.
type Manager struct {
	mu      sync.RWMutex
	current Config

	configPath string

	// onChange is called with the new config after a successful reload.
	onChange func(Config)

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewManager loads the initial configuration from configPath and returns a
// manager serving it. onChange may be nil.
func NewManager(configPath string, onChange func(Config)) (*Manager, error) {
	initial, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	return &Manager{
		current:    initial,
		configPath: configPath,
		onChange:   onChange,
	}, nil
}

// Get returns the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Start begins watching the config directory for changes. A watcher that
// cannot be established is logged and ignored; the initial config stays in
// effect.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("ConfigManager", "fsnotify not available, config hot reload disabled: %v", err)
		return nil
	}

	if err := watcher.Add(m.configPath); err != nil {
		logging.Warn("ConfigManager", "Failed to watch %s, config hot reload disabled: %v", m.configPath, err)
		watcher.Close()
		return nil
	}

	m.fsWatcher = watcher
	m.stopCh = make(chan struct{})
	m.running = true

	go m.watchLoop(watcher.Events, watcher.Errors, m.stopCh)

	logging.Info("ConfigManager", "Watching %s for configuration changes", m.configPath)
	return nil
}

// Stop ends the watch loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	close(m.stopCh)
	if m.fsWatcher != nil {
		m.fsWatcher.Close()
		m.fsWatcher = nil
	}
	m.running = false
}

func (m *Manager) watchLoop(events chan fsnotify.Event, errors chan error, stopCh chan struct{}) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			m.scheduleReload()

		case err, ok := <-errors:
			if !ok {
				return
			}
			logging.Warn("ConfigManager", "Watcher error: %v", err)

		case <-stopCh:
			return
		}
	}
}

// scheduleReload debounces bursts of file events into a single reload.
func (m *Manager) scheduleReload() {
	m.debounceMu.Lock()
	defer m.debounceMu.Unlock()

	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = time.AfterFunc(DefaultDebounceInterval, m.reload)
}

func (m *Manager) reload() {
	updated, err := LoadConfig(m.configPath)
	if err != nil {
		logging.Error("ConfigManager", err, "Failed to reload configuration, keeping previous")
		return
	}

	m.mu.Lock()
	m.current = updated
	onChange := m.onChange
	m.mu.Unlock()

	logging.Info("ConfigManager", "Configuration reloaded from %s", m.configPath)

	if onChange != nil {
		onChange(updated)
	}
}
