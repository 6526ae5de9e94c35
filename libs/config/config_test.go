package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8090")
	p, err := Port("TEST_PORT", "8080")
	require.NoError(t, err)
	assert.Equal(t, "8090", p)

	t.Setenv("TEST_PORT", "99999")
	_, err = Port("TEST_PORT", "8080")
	assert.Error(t, err)
}

func TestIntBoolDuration(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_BAD_INT", "x")
	t.Setenv("TEST_BOOL", "yes")
	t.Setenv("TEST_DUR_SECONDS", "30")
	t.Setenv("TEST_DUR", "2m")

	assert.Equal(t, 12, Int("TEST_INT", 1, 0))
	assert.Equal(t, 1, Int("TEST_BAD_INT", 1, 0))
	assert.Equal(t, 5, Int("TEST_INT", 5, 20))
	assert.True(t, Bool("TEST_BOOL", false))
	assert.True(t, Bool("TEST_MISSING_BOOL", true))
	assert.Equal(t, 30*time.Second, Duration("TEST_DUR_SECONDS", time.Minute, time.Second))
	assert.Equal(t, 2*time.Minute, Duration("TEST_DUR", time.Minute, time.Second))
}

func TestList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,c")
	assert.Equal(t, []string{"a", "b", "c"}, List("TEST_LIST", ""))
	assert.Equal(t, []string{"x"}, List("TEST_LIST_MISSING", "x"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DOTENV_ONLY_KEY=from-file\n"), 0o600))
	t.Setenv("DOTENV_ONLY_KEY", "")
	require.NoError(t, os.Unsetenv("DOTENV_ONLY_KEY"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("DOTENV_ONLY_KEY"))
}
