package actions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DomainAllowlist is the operator-managed list of domains that action
// sets may target. It is backed by a JSON file and can watch that file
// for changes so an operator edit takes effect without a restart.
type DomainAllowlist struct {
	filePath string

	mu      sync.RWMutex
	domains []string

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewDomainAllowlist loads the allow-list from filePath. A missing file
// is not an error; the list starts empty and is created on first save.
func NewDomainAllowlist(filePath string) (*DomainAllowlist, error) {
	if filePath == "" {
		return nil, fmt.Errorf("allowlist path is required")
	}

	al := &DomainAllowlist{filePath: filePath, done: make(chan struct{})}

	if err := al.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load domain allowlist: %w", err)
		}
		log.Info().Str("path", filePath).Msg("Domain allowlist file does not exist, starting empty")
	}

	return al, nil
}

// Load reads the allow-list file.
func (al *DomainAllowlist) Load() error {
	data, err := os.ReadFile(al.filePath)
	if err != nil {
		return err
	}

	var domains []string
	if err := json.Unmarshal(data, &domains); err != nil {
		return fmt.Errorf("parse domain allowlist: %w", err)
	}

	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		if nd := NormalizeDomain(d); nd != "" {
			normalized = append(normalized, nd)
		}
	}

	al.mu.Lock()
	al.domains = normalized
	al.mu.Unlock()

	log.Info().Str("path", al.filePath).Int("count", len(normalized)).Msg("Domain allowlist loaded")
	return nil
}

// Save writes the allow-list file.
func (al *DomainAllowlist) Save() error {
	al.mu.RLock()
	data, err := json.MarshalIndent(al.domains, "", "  ")
	al.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal domain allowlist: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(al.filePath), 0755); err != nil {
		return fmt.Errorf("create allowlist directory: %w", err)
	}
	if err := os.WriteFile(al.filePath, data, 0644); err != nil {
		return fmt.Errorf("write domain allowlist: %w", err)
	}
	return nil
}

// Add appends a domain (canonicalized) if not already present.
func (al *DomainAllowlist) Add(domain string) {
	nd := NormalizeDomain(domain)
	if nd == "" {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()
	for _, existing := range al.domains {
		if existing == nd {
			return
		}
	}
	al.domains = append(al.domains, nd)
}

// Domains returns a copy of the allowed domains.
func (al *DomainAllowlist) Domains() []string {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return append([]string(nil), al.domains...)
}

// Contains reports whether a domain is allowed.
func (al *DomainAllowlist) Contains(domain string) bool {
	nd := NormalizeDomain(domain)
	al.mu.RLock()
	defer al.mu.RUnlock()
	for _, existing := range al.domains {
		if existing == nd {
			return true
		}
	}
	return false
}

// Watch reloads the allow-list whenever its file changes on disk. Write
// bursts are debounced; a reload failure keeps the previous list.
func (al *DomainAllowlist) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create allowlist watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(al.filePath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch allowlist directory: %w", err)
	}

	al.watcher = watcher

	go func() {
		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(al.filePath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(100*time.Millisecond, func() {
					if err := al.Load(); err != nil {
						log.Warn().Err(err).Str("path", al.filePath).Msg("Domain allowlist reload failed, keeping previous list")
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Domain allowlist watcher error")
			case <-al.done:
				return
			}
		}
	}()

	return nil
}

// Stop tears down the file watcher.
func (al *DomainAllowlist) Stop() {
	al.stopOnce.Do(func() {
		close(al.done)
		if al.watcher != nil {
			al.watcher.Close()
		}
	})
}
