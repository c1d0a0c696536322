package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrBundleNotFound is returned when no bundle matches an input file's
// customer prefix. There is no default bundle; an unmatched prefix is a
// configuration gap that has to surface, not be papered over.
var ErrBundleNotFound = errors.New("no bundle for customer prefix")

// Assets points at the files of one resolved bundle.
type Assets struct {
	CustomerCode string
	BundleDir    string
	ConfigPath   string
	TemplatePath string
	LayoutPath   string
}

// CustomerPrefix extracts the leading letters of an input file name, which
// identify the customer ("JF25058.xlsx" yields "JF"). Empty when the name
// does not start with a letter.
func CustomerPrefix(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var prefix []rune
	for _, r := range base {
		if !unicode.IsLetter(r) {
			break
		}
		prefix = append(prefix, unicode.ToUpper(r))
	}
	return string(prefix)
}

// Resolve locates the bundle for an input file by its customer prefix.
// The match is exact: the prefix must name an existing bundle directory
// holding both a config and a template.
func (s *Store) Resolve(filename string) (*Assets, error) {
	prefix := CustomerPrefix(filename)
	if prefix == "" {
		return nil, fmt.Errorf("%w: %q has no letter prefix", ErrBundleNotFound, filepath.Base(filename))
	}

	dir := filepath.Join(s.root, prefix)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, prefix)
	}

	assets := &Assets{
		CustomerCode: prefix,
		BundleDir:    dir,
		ConfigPath:   filepath.Join(dir, prefix+configSuffix),
		TemplatePath: filepath.Join(dir, prefix+templateSuffix),
		LayoutPath:   filepath.Join(dir, prefix+layoutSuffix),
	}
	if _, err := os.Stat(assets.ConfigPath); err != nil {
		return nil, fmt.Errorf("%w: %s has no config", ErrBundleNotFound, prefix)
	}
	if _, err := os.Stat(assets.TemplatePath); err != nil {
		return nil, fmt.Errorf("%w: %s has no template", ErrBundleNotFound, prefix)
	}
	return assets, nil
}

// List returns the customer codes with an installed bundle, sorted by the
// directory listing order of the root.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read bundle root: %w", err)
	}
	var codes []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		code := e.Name()
		if _, err := os.Stat(filepath.Join(s.root, code, code+configSuffix)); err == nil {
			codes = append(codes, code)
		}
	}
	return codes, nil
}
