package secrets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxEnvLine bounds a single .env line; inline PEM keys can be long.
const maxEnvLine = 1024 * 1024

type envPair struct {
	key   string
	value string
}

// parseEnv reads KEY=VALUE lines. Blank lines, # comments, lines without '='
// and lines with an empty key are skipped.
func parseEnv(r io.Reader) ([]envPair, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEnvLine)

	var pairs []envPair
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		pairs = append(pairs, envPair{key: key, value: unquote(strings.TrimSpace(value))})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// unquote strips one layer of matching single or double quotes.
func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	first, last := v[0], v[len(v)-1]
	if first == last && (first == '"' || first == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}

// loadEnvFile parses path and writes every pair into env, overwriting
// existing values. It returns the keys it assigned.
func loadEnvFile(env Environment, path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pairs, err := parseEnv(f)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		if err := env.Setenv(p.key, p.value); err != nil {
			return nil, fmt.Errorf("set %s: %w", p.key, err)
		}
		keys[p.key] = struct{}{}
	}
	return keys, nil
}
