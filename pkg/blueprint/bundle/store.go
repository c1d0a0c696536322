package bundle

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/exportdocs/blueprint/pkg/blueprint/models"
)

// File names inside a bundle directory, prefixed with the customer code.
const (
	configSuffix   = "_config.json"
	layoutSuffix   = "_layout.json"
	templateSuffix = "_template.xlsx"
)

// Store persists per-customer bundle directories under a single root.
// Installs are atomic: content is staged in a scratch directory and moved
// into place with a rename, so a reader never observes a half-written
// bundle. Concurrent installs for the same customer are serialized.
type Store struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bundle root %s: %w", dir, err)
	}
	return &Store{
		root:   dir,
		logger: slog.Default().With("component", "bundle-store"),
		locks:  map[string]*sync.Mutex{},
	}, nil
}

// Root returns the bundle root directory.
func (s *Store) Root() string { return s.root }

// BundleDir returns the directory a customer's bundle lives in.
func (s *Store) BundleDir(customerCode string) string {
	return filepath.Join(s.root, strings.ToUpper(customerCode))
}

// ConfigPath returns the config file path inside a customer's bundle.
func (s *Store) ConfigPath(customerCode string) string {
	code := strings.ToUpper(customerCode)
	return filepath.Join(s.root, code, code+configSuffix)
}

// TemplatePath returns the sanitized template path inside a customer's bundle.
func (s *Store) TemplatePath(customerCode string) string {
	code := strings.ToUpper(customerCode)
	return filepath.Join(s.root, code, code+templateSuffix)
}

// lockFor returns the per-customer mutex, creating it on first use.
func (s *Store) lockFor(customerCode string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := strings.ToUpper(customerCode)
	l, ok := s.locks[code]
	if !ok {
		l = &sync.Mutex{}
		s.locks[code] = l
	}
	return l
}

// Stage creates a scratch directory under the root for assembling a bundle.
// Keeping it on the same filesystem as the root makes the final rename atomic.
func (s *Store) Stage() (string, error) {
	dir, err := os.MkdirTemp(s.root, ".staging-*")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return dir, nil
}

// WriteConfig marshals the bundle config into the staging directory.
func (s *Store) WriteConfig(stagingDir string, cfg *models.BundleConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal bundle config: %w", err)
	}
	name := strings.ToUpper(cfg.Meta.Customer) + configSuffix
	path := filepath.Join(stagingDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write bundle config: %w", err)
	}
	return path, nil
}

// WriteLayout marshals the captured sheet layouts into the staging directory.
func (s *Store) WriteLayout(stagingDir, customerCode string, layouts map[string]*models.SheetLayout) (string, error) {
	data, err := json.MarshalIndent(layouts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal layout: %w", err)
	}
	name := strings.ToUpper(customerCode) + layoutSuffix
	path := filepath.Join(stagingDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write layout: %w", err)
	}
	return path, nil
}

// StagedTemplatePath returns where the sanitized template goes in staging.
func (s *Store) StagedTemplatePath(stagingDir, customerCode string) string {
	return filepath.Join(stagingDir, strings.ToUpper(customerCode)+templateSuffix)
}

// Install moves a fully staged bundle into place, wholesale replacing any
// previous bundle for the customer. The previous bundle stays available
// until the very last rename.
func (s *Store) Install(customerCode, stagingDir string) (string, error) {
	lock := s.lockFor(customerCode)
	lock.Lock()
	defer lock.Unlock()

	target := s.BundleDir(customerCode)
	retired := target + ".retired"

	// Leftover from an earlier interrupted install.
	if err := os.RemoveAll(retired); err != nil {
		return "", fmt.Errorf("clear retired bundle: %w", err)
	}

	replaced := false
	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, retired); err != nil {
			return "", fmt.Errorf("retire previous bundle: %w", err)
		}
		replaced = true
	}

	if err := os.Rename(stagingDir, target); err != nil {
		if replaced {
			// Put the previous bundle back rather than leaving nothing.
			if restoreErr := os.Rename(retired, target); restoreErr != nil {
				s.logger.Error("failed to restore previous bundle",
					"customer", customerCode, "error", restoreErr)
			}
		}
		return "", fmt.Errorf("install bundle for %s: %w", customerCode, err)
	}

	if replaced {
		if err := os.RemoveAll(retired); err != nil {
			s.logger.Warn("could not remove retired bundle", "path", retired, "error", err)
		}
		s.logger.Info("replaced bundle", "customer", strings.ToUpper(customerCode), "dir", target)
	} else {
		s.logger.Info("installed bundle", "customer", strings.ToUpper(customerCode), "dir", target)
	}
	return target, nil
}

// Discard removes a staging directory after a failed build.
func (s *Store) Discard(stagingDir string) {
	if stagingDir == "" {
		return
	}
	if err := os.RemoveAll(stagingDir); err != nil {
		s.logger.Warn("could not discard staging dir", "path", stagingDir, "error", err)
	}
}
