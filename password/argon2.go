package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Prefix = "$argon2id$"

	floorMemoryKB = 8 * 1024
	floorSaltLen  = 16
	floorKeyLen   = 16

	// DefaultMinLength is the shortest password accepted for new hashes.
	DefaultMinLength = 6
	// DefaultMaxPasswordBytes caps the input accepted by Hash and Verify.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrPasswordTooShort is returned by Hash for passwords under the configured minimum.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned by Hash and Verify for oversized input.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrUnsupportedHash is returned when a stored hash matches no known scheme.
	ErrUnsupportedHash = errors.New("unsupported password hash")
	// ErrMalformedHash is returned when an argon2id hash cannot be decoded.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config holds Argon2id cost parameters and the accepted password lengths.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength        int
	MaxPasswordBytes int
}

// DefaultConfig returns the parameters used for new hashes.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MinLength:        DefaultMinLength,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < floorMemoryKB:
		return fmt.Errorf("password memory must be >= %d KiB", floorMemoryKB)
	case c.Time < 1:
		return errors.New("password time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < floorSaltLen:
		return fmt.Errorf("password salt length must be >= %d", floorSaltLen)
	case c.KeyLength < floorKeyLen:
		return fmt.Errorf("password key length must be >= %d", floorKeyLen)
	}
	return nil
}

// argon2Hash is a decoded PHC string.
type argon2Hash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (h argon2Hash) String() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, h.memory, h.time, h.threads,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func decodeArgon2(encoded string) (argon2Hash, error) {
	var h argon2Hash
	if !strings.HasPrefix(encoded, argon2Prefix) {
		return h, ErrUnsupportedHash
	}
	fields := strings.Split(strings.TrimPrefix(encoded, argon2Prefix), "$")
	if len(fields) != 4 {
		return h, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedHash, len(fields))
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return h, fmt.Errorf("%w: version: %v", ErrMalformedHash, err)
	}
	if version != argon2.Version {
		return h, fmt.Errorf("%w: argon2 version %d", ErrUnsupportedHash, version)
	}

	var memory, time uint32
	var threads uint8
	if n, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil || n != 3 {
		return h, fmt.Errorf("%w: parameters %q", ErrMalformedHash, fields[1])
	}
	if memory < floorMemoryKB || time < 1 || threads < 1 {
		return h, fmt.Errorf("%w: parameters below floor", ErrMalformedHash)
	}

	// Older hashes were written with padded base64.
	salt, err := decodeB64(fields[2])
	if err != nil || len(salt) < floorSaltLen {
		return h, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := decodeB64(fields[3])
	if err != nil || len(key) == 0 {
		return h, fmt.Errorf("%w: key", ErrMalformedHash)
	}

	return argon2Hash{memory: memory, time: time, threads: threads, salt: salt, key: key}, nil
}

func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Argon2 produces and verifies PHC-encoded argon2id hashes.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher using it.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh argon2id key with a random salt. Lengths are counted
// in bytes and no Unicode normalization is applied.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < a.config.MinLength {
		return "", fmt.Errorf("%w: need at least %d bytes", ErrPasswordTooShort, a.config.MinLength)
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	h := argon2Hash{
		memory:  a.config.Memory,
		time:    a.config.Time,
		threads: a.config.Parallelism,
		salt:    salt,
	}
	h.key = argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, a.config.KeyLength)
	return h.String(), nil
}

// Verify reports whether password matches encodedHash in constant time.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	h, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters or a different key length than the current config.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	h, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	weaker := h.memory < a.config.Memory ||
		h.time < a.config.Time ||
		h.threads < a.config.Parallelism ||
		uint32(len(h.key)) != a.config.KeyLength
	return weaker, nil
}
