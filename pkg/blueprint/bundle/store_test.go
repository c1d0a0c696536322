package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportdocs/blueprint/pkg/blueprint/models"
)

// stageBundle assembles a complete staged bundle for a customer.
func stageBundle(t *testing.T, store *Store, code string) string {
	t.Helper()
	staging, err := store.Stage()
	require.NoError(t, err)

	cfg := ComposeConfig(packingAnalysis(), code)
	_, err = store.WriteConfig(staging, cfg)
	require.NoError(t, err)
	_, err = store.WriteLayout(staging, code, map[string]*models.SheetLayout{
		"PACKING LIST": models.NewSheetLayout(),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.StagedTemplatePath(staging, code), []byte("xlsx"), 0o644))
	return staging
}

func TestStoreInstall(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "bundles"))
	require.NoError(t, err)

	staging := stageBundle(t, store, "JF")
	dir, err := store.Install("JF", staging)
	require.NoError(t, err)
	assert.Equal(t, store.BundleDir("JF"), dir)

	assert.FileExists(t, store.ConfigPath("JF"))
	assert.FileExists(t, store.TemplatePath("JF"))
	// The staging dir moved, it must not linger.
	assert.NoDirExists(t, staging)
}

func TestStoreInstallReplacesWholesale(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "bundles"))
	require.NoError(t, err)

	first := stageBundle(t, store, "JF")
	_, err = store.Install("JF", first)
	require.NoError(t, err)

	// A file only the first bundle had.
	stale := filepath.Join(store.BundleDir("JF"), "leftover.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	second := stageBundle(t, store, "JF")
	_, err = store.Install("JF", second)
	require.NoError(t, err)

	assert.NoFileExists(t, stale, "replacement must be wholesale, not a merge")
	assert.FileExists(t, store.ConfigPath("JF"))
	assert.NoDirExists(t, store.BundleDir("JF")+".retired")
}

func TestStoreInstallUppercasesCode(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "bundles"))
	require.NoError(t, err)

	staging := stageBundle(t, store, "jf")
	dir, err := store.Install("jf", staging)
	require.NoError(t, err)
	assert.Equal(t, "JF", filepath.Base(dir))
}

func TestWriteConfigRejectsInvalid(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	staging, err := store.Stage()
	require.NoError(t, err)
	defer store.Discard(staging)

	cfg := ComposeConfig(packingAnalysis(), "JF")
	cfg.Meta.Customer = ""
	_, err = store.WriteConfig(staging, cfg)
	assert.Error(t, err)
}

func TestResolveStrictPrefix(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "bundles"))
	require.NoError(t, err)
	staging := stageBundle(t, store, "JF")
	_, err = store.Install("JF", staging)
	require.NoError(t, err)

	assets, err := store.Resolve("JF25058.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "JF", assets.CustomerCode)
	assert.Equal(t, store.ConfigPath("JF"), assets.ConfigPath)
	assert.Equal(t, store.TemplatePath("JF"), assets.TemplatePath)
}

func TestResolveNoDefaultFallback(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "bundles"))
	require.NoError(t, err)
	staging := stageBundle(t, store, "JF")
	_, err = store.Install("JF", staging)
	require.NoError(t, err)

	for _, name := range []string{"QQ123.xlsx", "123.xlsx", "ZZTOP99.xlsx"} {
		_, err := store.Resolve(name)
		assert.ErrorIs(t, err, ErrBundleNotFound, "input %q", name)
	}
}

func TestResolveRequiresCompleteBundle(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "bundles"))
	require.NoError(t, err)

	// A directory without config and template is not a bundle.
	require.NoError(t, os.MkdirAll(store.BundleDir("JF"), 0o755))
	_, err = store.Resolve("JF25058.xlsx")
	assert.ErrorIs(t, err, ErrBundleNotFound)
}

func TestCustomerPrefix(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"JF25058.xlsx", "JF"},
		{"/uploads/abc/tgp881.xlsx", "TGP"},
		{"INVOICE.xlsx", "INVOICE"},
		{"25058.xlsx", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CustomerPrefix(tt.filename), "input %q", tt.filename)
	}
}

func TestStoreList(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "bundles"))
	require.NoError(t, err)

	for _, code := range []string{"JF", "TGP"} {
		staging := stageBundle(t, store, code)
		_, err := store.Install(code, staging)
		require.NoError(t, err)
	}
	// An incomplete directory is not listed.
	require.NoError(t, os.MkdirAll(filepath.Join(store.Root(), "BROKEN"), 0o755))

	codes, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"JF", "TGP"}, codes)
}
