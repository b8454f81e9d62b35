package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvironment(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("slug=from-dotenv\n"), 0o644))

	configEnvs := map[string]map[string]string{
		"dev":  {"baseUrl": "http://localhost:8000", "slug": "from-config"},
		"prod": {"baseUrl": "https://blog.example.com"},
	}

	env, err := LoadEnvironment("dev", configEnvs, envFile)
	require.NoError(t, err)
	assert.Equal(t, "dev", env.Name)
	assert.Equal(t, "http://localhost:8000", env.Variables["baseUrl"])
	assert.Equal(t, "from-dotenv", env.Variables["slug"])

	env, err = LoadEnvironment("staging", configEnvs, "")
	require.NoError(t, err)
	assert.Empty(t, env.Variables)

	_, err = LoadEnvironment("dev", configEnvs, filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestMergeVariables(t *testing.T) {
	got := MergeVariables(map[string]string{"a": "1", "b": "1"}, nil, map[string]string{"b": "2"})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}

func TestLoadSystemEnv(t *testing.T) {
	t.Setenv("PAGESPEC_VAR_slug", "hello")
	vars := LoadSystemEnv("PAGESPEC_VAR_")
	assert.Equal(t, "hello", vars["slug"])
	_, ok := vars["PAGESPEC_VAR_slug"]
	assert.False(t, ok)
}
