package env

import (
	"os"
	"strings"
)

type Environment struct {
	Name      string
	Variables map[string]string
}

// LoadEnvironment builds the named environment from the config's
// environments section, overlaid with a .env file when dotEnvPath is set.
func LoadEnvironment(envName string, configEnvs map[string]map[string]string, dotEnvPath string) (*Environment, error) {
	env := &Environment{
		Name:      envName,
		Variables: make(map[string]string),
	}

	if vars, ok := configEnvs[envName]; ok {
		for k, v := range vars {
			env.Variables[k] = v
		}
	}

	if dotEnvPath != "" {
		vars, err := LoadAndExportDotEnv(dotEnvPath)
		if err != nil {
			return nil, err
		}
		for k, v := range vars {
			env.Variables[k] = v
		}
	}

	return env, nil
}

func MergeVariables(sources ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns process environment variables starting with prefix,
// with the prefix removed.
func LoadSystemEnv(prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
