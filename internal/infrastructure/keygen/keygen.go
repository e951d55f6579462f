package keygen

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rezkam/dayplan/internal/domain"
	"golang.org/x/crypto/blake2b"
)

// Defaults for keys minted by the planner.
const (
	DefaultKeyType = "sk"
	DefaultService = "dayplan"
	DefaultVersion = "v1"
)

// APIKeyParts represents the components of an API key.
type APIKeyParts struct {
	KeyType    string // "sk" (secret key) or "pk" (public key)
	Service    string // "dayplan"
	Version    string // "v1"
	ShortToken string // 12 hex chars derived from the secret, used for lookup
	LongSecret string // 43 chars of base64url, never stored
	FullKey    string
}

// GenerateAPIKey creates a key shaped {type}-{service}-{version}-{short}-{secret},
// for example sk-dayplan-v1-a3f5d8c2b4e6-8h3k2jf9s7d6f5g4h3j2k1m0n9p8q7r6s5t4u3v2w1x.
func GenerateAPIKey(keyType, service, version string) (*APIKeyParts, error) {
	for _, part := range []string{keyType, service, version} {
		if part == "" || strings.Contains(part, "-") {
			return nil, fmt.Errorf("%w: prefix part %q", domain.ErrInvalidAPIKeyFormat, part)
		}
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	longSecret := base64.RawURLEncoding.EncodeToString(secret)

	// 48-bit lookup token taken from the secret's BLAKE2b digest
	sum := blake2b.Sum256([]byte(longSecret))
	shortToken := hex.EncodeToString(sum[:6])

	return &APIKeyParts{
		KeyType:    keyType,
		Service:    service,
		Version:    version,
		ShortToken: shortToken,
		LongSecret: longSecret,
		FullKey:    strings.Join([]string{keyType, service, version, shortToken, longSecret}, "-"),
	}, nil
}

// ParseAPIKey splits a key into its components. The secret is base64url and
// may itself contain hyphens, so only the first four separators count.
func ParseAPIKey(apiKey string) (*APIKeyParts, error) {
	parts := strings.SplitN(strings.TrimSpace(apiKey), "-", 5)
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: expected 5 parts, got %d", domain.ErrInvalidAPIKeyFormat, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty part %d", domain.ErrInvalidAPIKeyFormat, i)
		}
	}

	return &APIKeyParts{
		KeyType:    parts[0],
		Service:    parts[1],
		Version:    parts[2],
		ShortToken: parts[3],
		LongSecret: parts[4],
		FullKey:    apiKey,
	}, nil
}

// Display returns the key with its secret hidden, e.g. "sk-dayplan-v1-a3f5d8c2b4e6-****".
func (k *APIKeyParts) Display() string {
	return fmt.Sprintf("%s-%s-%s-%s-****", k.KeyType, k.Service, k.Version, k.ShortToken)
}

// HashSecret returns the hex BLAKE2b-256 digest of secret.
func HashSecret(secret string) string {
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// MaskAPIKey returns a log-safe form of a raw key: only its type survives.
func MaskAPIKey(apiKey string) string {
	parts, err := ParseAPIKey(apiKey)
	if err != nil {
		return "***"
	}
	return parts.KeyType + "-***"
}
