package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	pgerrors "pglauncher/internal/errors"
)

// PlatformIDs are the keys accepted in a per-platform bin mapping.
var PlatformIDs = []string{
	"darwin-arm64", "darwin-x64",
	"linux-arm64", "linux-x64",
	"win32-arm64", "win32-x64",
}

// Validate checks the loaded configuration and reports the first problem as
// a configuration error.
func Validate() error {
	v, err := getViper()
	if err != nil {
		return err
	}
	if err := validateBin(v.Get(KeyBin)); err != nil {
		return err
	}
	if err := validateTTL(v.Get(KeyReleaseCacheTTL)); err != nil {
		return err
	}
	for _, key := range []string{KeyReleaseHost, KeyReleaseAPI} {
		if err := validateEndpoint(key, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

func configError(format string, args ...any) error {
	return pgerrors.New(pgerrors.CodeConfigurationError, fmt.Sprintf(format, args...), nil)
}

func validateBin(raw any) error {
	switch bin := raw.(type) {
	case nil, string:
		return nil
	case map[string]any:
		keys := make([]string, 0, len(bin))
		for k := range bin {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !knownPlatform(k) {
				return configError("%s: unknown platform %q (want one of %s)", KeyBin, k, strings.Join(PlatformIDs, ", "))
			}
			if _, ok := bin[k].(string); !ok {
				return configError("%s.%s: expected a path, got %T", KeyBin, k, bin[k])
			}
		}
		return nil
	default:
		return configError("%s: expected a path or a mapping of platform to path, got %T", KeyBin, raw)
	}
}

func knownPlatform(id string) bool {
	for _, p := range PlatformIDs {
		if p == id {
			return true
		}
	}
	return false
}

func validateTTL(raw any) error {
	var ttl time.Duration
	switch v := raw.(type) {
	case time.Duration:
		ttl = v
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return configError("%s: %v", KeyReleaseCacheTTL, err)
		}
		ttl = parsed
	case int:
		ttl = time.Duration(v) * time.Second
	case nil:
		return nil
	default:
		return configError("%s: expected a duration such as 1h, got %T", KeyReleaseCacheTTL, raw)
	}
	if ttl < 0 {
		return configError("%s: must not be negative", KeyReleaseCacheTTL)
	}
	return nil
}

func validateEndpoint(key, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return configError("%s: %v", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return configError("%s: %q is not an http(s) URL", key, raw)
	}
	return nil
}
