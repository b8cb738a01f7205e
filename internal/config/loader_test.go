package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corvidlabs/blockctl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCookieJar_YAML(t *testing.T) {
	path := writeTemp(t, "cookies.yaml", "ct0: abc123\nauth_token: def456\n")

	jar, err := LoadCookieJar(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", jar.CSRF())
}

func TestLoadCookieJar_FlatText(t *testing.T) {
	path := writeTemp(t, "cookies.txt", "ct0=abc123; auth_token=def456")

	jar, err := LoadCookieJar(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", jar.CSRF())
}

func TestLoadCookieJar_MissingCookieIsConfigError(t *testing.T) {
	path := writeTemp(t, "cookies.yaml", "ct0: abc123\n")

	_, err := LoadCookieJar(path)
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadCookieJar_MissingFile(t *testing.T) {
	_, err := LoadCookieJar(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	var cfgErr *domain.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestReloadCookieJar_UpdatesInPlace(t *testing.T) {
	path := writeTemp(t, "cookies.yaml", "ct0: abc123\nauth_token: def456\n")
	jar, err := LoadCookieJar(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("ct0: newvalue\nauth_token: def456\n"), 0o600))
	require.NoError(t, ReloadCookieJar(path, jar))

	assert.Equal(t, "newvalue", jar.CSRF())
}

func TestLoadTargetList_Valid(t *testing.T) {
	path := writeTemp(t, "targets.yaml", "format: screen_name\nusers:\n  - alice\n  - bob\n")

	list, err := LoadTargetList(path)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatScreenName, list.Format)
	assert.Equal(t, []string{"alice", "bob"}, list.Users)
}

func TestLoadTargetList_UnknownFormat(t *testing.T) {
	path := writeTemp(t, "targets.yaml", "format: email\nusers:\n  - alice\n")

	_, err := LoadTargetList(path)
	require.Error(t, err)
}

func TestLoadTargetList_EmptyUsers(t *testing.T) {
	path := writeTemp(t, "targets.yaml", "format: user_id\nusers: []\n")

	_, err := LoadTargetList(path)
	require.Error(t, err)
}

func TestVersion_EnvOverride(t *testing.T) {
	os.Setenv(versionEnvOverride, "9.9.9")
	t.Cleanup(func() { os.Unsetenv(versionEnvOverride) })

	assert.Equal(t, "9.9.9", Version(""))
}

func TestVersion_FromFile(t *testing.T) {
	os.Unsetenv(versionEnvOverride)
	path := writeTemp(t, "VERSION", "1.2.3\n")

	assert.Equal(t, "1.2.3", Version(path))
}

func TestVersion_DefaultDev(t *testing.T) {
	os.Unsetenv(versionEnvOverride)
	assert.Equal(t, "dev", Version(""))
}
