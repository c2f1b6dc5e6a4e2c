package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/argon2"
)

// Encoded hashes follow the PHC string convention:
// $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
// with salt and key in unpadded standard base64.
const phcVariant = "argon2id"

// Floors below which ConfigureArgon2 refuses to operate.
const (
	minMemoryKiB = 8 * 1024
	minSaltBytes = 8
	minKeyBytes  = 16
)

var (
	errMalformedHash = errors.New("argon2: malformed encoded hash")
	errWeakParams    = errors.New("argon2: parameters below floor")
)

// Argon2Config holds the Argon2id cost parameters and the salt and key sizes
// used for new hashes.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8

	SaltLength uint32
	KeyLength  uint32
}

var activeConfig atomic.Pointer[Argon2Config]

func init() {
	cfg := DefaultArgon2Config()
	activeConfig.Store(&cfg)
}

// DefaultArgon2Config returns the baseline cost parameters.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// CurrentArgon2Config returns the parameters used for new hashes.
func CurrentArgon2Config() Argon2Config {
	return *activeConfig.Load()
}

// ConfigureArgon2 swaps the active cost parameters. Hashes created earlier
// keep verifying because every encoded hash carries its own parameters.
func ConfigureArgon2(cfg Argon2Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	activeConfig.Store(&cfg)
	return nil
}

func (cfg Argon2Config) validate() error {
	switch {
	case cfg.Memory < minMemoryKiB:
		return fmt.Errorf("%w: memory %d KiB, need %d", errWeakParams, cfg.Memory, minMemoryKiB)
	case cfg.Iterations == 0:
		return fmt.Errorf("%w: zero iterations", errWeakParams)
	case cfg.Parallelism == 0:
		return fmt.Errorf("%w: zero parallelism", errWeakParams)
	case cfg.SaltLength < minSaltBytes:
		return fmt.Errorf("%w: salt %d bytes, need %d", errWeakParams, cfg.SaltLength, minSaltBytes)
	case cfg.KeyLength < minKeyBytes:
		return fmt.Errorf("%w: key %d bytes, need %d", errWeakParams, cfg.KeyLength, minKeyBytes)
	}
	return nil
}

// HashPassword derives an Argon2id hash of the password under the active
// parameters and encodes it as a PHC string.
func HashPassword(password string) (string, error) {
	cfg := CurrentArgon2Config()
	salt := make([]byte, cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVariant, argon2.Version,
		cfg.Memory, cfg.Iterations, cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether the password matches the encoded hash. The
// comparison runs in constant time; cost parameters come from the hash
// itself, not from the active configuration.
func VerifyPassword(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	cfg, salt, want, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// DummyVerifyPassword burns the same argon2 work as a real verification.
// Login calls it when no account matches so the unknown-email path costs as
// much as the wrong-password path.
func DummyVerifyPassword(password string) {
	cfg := CurrentArgon2Config()
	salt := make([]byte, cfg.SaltLength)
	argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)
}

func decodePHC(encoded string) (Argon2Config, []byte, []byte, error) {
	var zero Argon2Config

	// The leading separator yields an empty first field.
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return zero, nil, nil, errMalformedHash
	}

	if fields[1] != phcVariant {
		return zero, nil, nil, fmt.Errorf("argon2: unsupported variant %q", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return zero, nil, nil, fmt.Errorf("argon2: unsupported version %q", fields[2])
	}

	var cfg Argon2Config
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &cfg.Memory, &cfg.Iterations, &cfg.Parallelism); err != nil {
		return zero, nil, nil, fmt.Errorf("%w: parameters %q", errMalformedHash, fields[3])
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil {
		return zero, nil, nil, fmt.Errorf("argon2: decode salt: %w", err)
	}

	key, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil {
		return zero, nil, nil, fmt.Errorf("argon2: decode key: %w", err)
	}

	cfg.SaltLength = uint32(len(salt))
	cfg.KeyLength = uint32(len(key))
	if err := cfg.validate(); err != nil {
		return zero, nil, nil, err
	}

	return cfg, salt, key, nil
}
