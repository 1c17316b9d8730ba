package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
)

// DefaultPath is the secrets document looked up relative to the working
// directory when no other path is given.
const DefaultPath = "secrets.json"

// Well-known credential and setting keys.
const (
	KeyCFAccessKey         = "CF_ACCESS_KEY"
	KeyCFSecretKey         = "CF_SECRET_KEY"
	KeyCFKeyPairID         = "CF_KEYPAIR_KEY"
	KeyCFKeyPairPEM        = "CF_KEYPAIR_PEM"
	KeyCFKeyPairPassphrase = "CF_KEYPAIR_PASSPHRASE"
	KeyCFStaticDistroID    = "CF_STATIC_DISTRO_ID"
	KeyS3AccessKey         = "S3_ACCESS_KEY"
	KeyS3SecretKey         = "S3_SECRET_KEY"
)

// Source identifies where a Provider reads its values from.
type Source string

const (
	SourceFile Source = "file"
	SourceEnv  Source = "env"
)

var (
	readFile  = os.ReadFile
	lookupEnv = os.LookupEnv
)

// Provider answers credential lookups from exactly one source.
type Provider struct {
	values    map[string]string
	lookupEnv func(string) (string, bool)
}

// Load reads the secrets document at path. Any read or parse failure
// leaves the provider in environment-only mode.
func Load(path string, logger logging.Logger) *Provider {
	ctx := context.Background()

	values, err := parseFile(path)
	if err != nil {
		logger.Debug(ctx, "secrets document not used, falling back to environment", "path", path, "error", err)
		return FromEnv()
	}
	if len(values) == 0 {
		logger.Debug(ctx, "secrets document is empty, falling back to environment", "path", path)
		return FromEnv()
	}

	logger.Debug(ctx, "secrets document loaded", "path", path, "keys", len(values))
	return FromMap(values)
}

func parseFile(path string) (map[string]string, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// FromMap returns a file-mode provider over a copy of values.
func FromMap(values map[string]string) *Provider {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Provider{values: cp}
}

// FromEnv returns an environment-only provider.
func FromEnv() *Provider {
	return &Provider{lookupEnv: lookupEnv}
}

// Source reports which source answers lookups.
func (p *Provider) Source() Source {
	if p.values != nil {
		return SourceFile
	}
	return SourceEnv
}

// Get returns the value stored under key.
func (p *Provider) Get(key string) (string, error) {
	if p.values != nil {
		if v, ok := p.values[key]; ok {
			return v, nil
		}
		return "", fmt.Errorf("%s is not in your secrets file: %w", key, common.ErrConfiguration)
	}

	if v, ok := p.lookupEnv(key); ok {
		return v, nil
	}
	return "", fmt.Errorf("%s is not in the local environment: %w", key, common.ErrConfiguration)
}

// GetOrDefault returns the value stored under key, or def when the lookup fails.
func (p *Provider) GetOrDefault(key, def string) string {
	v, err := p.Get(key)
	if err != nil {
		return def
	}
	return v
}
