package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corvidlabs/blockctl/internal/domain"
)

// LoadCookieJar reads the cookie jar file at path. The file may be a
// YAML map (key: value per cookie) or, for compatibility with plain
// "cookie.txt" exports, flat "key=value; key2=value2" text — both
// accepted, tried in that order.
func LoadCookieJar(path string) (*domain.CookieJar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("reading cookie jar %s: %v", path, err)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("statting cookie jar %s: %v", path, err)}
	}

	values, err := parseCookieValues(raw)
	if err != nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("parsing cookie jar %s: %v", path, err)}
	}

	jar, err := domain.NewCookieJar(values, info.ModTime().UnixNano())
	if err != nil {
		return nil, err
	}
	return jar, nil
}

// ReloadCookieJar re-reads path into the existing jar in place, used by
// session recovery after an Auth classification.
func ReloadCookieJar(path string, jar *domain.CookieJar) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &domain.ConfigError{Reason: fmt.Sprintf("reloading cookie jar %s: %v", path, err)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &domain.ConfigError{Reason: fmt.Sprintf("statting cookie jar %s: %v", path, err)}
	}
	values, err := parseCookieValues(raw)
	if err != nil {
		return &domain.ConfigError{Reason: fmt.Sprintf("parsing cookie jar %s: %v", path, err)}
	}
	jar.Replace(values, info.ModTime().UnixNano())
	return nil
}

func parseCookieValues(raw []byte) (map[string]string, error) {
	var asMap map[string]string
	if err := yaml.Unmarshal(raw, &asMap); err == nil && len(asMap) > 0 {
		return asMap, nil
	}

	values := map[string]string{}
	for _, pair := range strings.FieldsFunc(string(raw), func(r rune) bool { return r == ';' || r == '\n' }) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no cookie key=value pairs found")
	}
	return values, nil
}

// LoadTargetList reads and validates the target list file at path.
func LoadTargetList(path string) (*domain.TargetList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("reading target list %s: %v", path, err)}
	}

	var list domain.TargetList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("parsing target list %s: %v", path, err)}
	}

	if err := validate.Struct(&list); err != nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("invalid target list %s: %v", path, err)}
	}
	if !list.Format.Valid() {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("target list %s: unknown format %q", path, list.Format)}
	}

	return &list, nil
}

const versionEnvOverride = "BLOCKCTL_VERSION_OVERRIDE"

// DefaultVersionFilePath is the VERSION file Version falls back to
// reading when a caller has no more specific path in hand: one next to
// the running binary, the way a packaged release would ship it.
func DefaultVersionFilePath() string {
	return filepath.Join(filepath.Dir(os.Args[0]), "VERSION")
}

// Version reports the running binary's version: an env override, else
// a VERSION file alongside it, else "dev".
func Version(versionFilePath string) string {
	if v := os.Getenv(versionEnvOverride); v != "" {
		return v
	}
	if versionFilePath != "" {
		if raw, err := os.ReadFile(versionFilePath); err == nil {
			if v := strings.TrimSpace(string(raw)); v != "" {
				return v
			}
		}
	}
	return "dev"
}
