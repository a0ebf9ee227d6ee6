// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: openai-api-key (plus openai-api-key-2, -3, ... for a
// key pool), serper-api-key, crossref-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Key file names.
const (
	OpenAIKey   = "openai-api-key"
	SerperKey   = "serper-api-key"
	CrossrefKey = "crossref-email"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// CompletionKeys collects the completion API key pool from loaded secrets:
// "openai-api-key" first, then "openai-api-key-2", "openai-api-key-3", and
// so on in suffix order. Returns nil when no key is present.
func CompletionKeys(secrets map[string]string) []string {
	var keys []string
	if v, ok := secrets[OpenAIKey]; ok {
		keys = append(keys, v)
	}

	var suffixed []string
	for name := range secrets {
		if strings.HasPrefix(name, OpenAIKey+"-") {
			suffixed = append(suffixed, name)
		}
	}
	sort.Strings(suffixed)
	for _, name := range suffixed {
		keys = append(keys, secrets[name])
	}
	return keys
}
