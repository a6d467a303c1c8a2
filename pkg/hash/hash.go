package hash

import (
	"encoding/binary"
	"fmt"
	gohash "hash"
	"math/big"
	"strings"

	sha256 "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Algorithm selects the 256-bit digest behind a Hash.
type Algorithm int

const (
	// SHA256 is the digest of the legacy challenge transcript.
	SHA256 Algorithm = iota
	SHA3_256
	BLAKE3
)

func (a Algorithm) String() string {
	switch a {
	case SHA256:
		return "sha256"
	case SHA3_256:
		return "sha3-256"
	case BLAKE3:
		return "blake3"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm maps a configuration name to an Algorithm. The empty string
// selects SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha256", "sha-256":
		return SHA256, nil
	case "sha3-256", "sha3":
		return SHA3_256, nil
	case "blake3":
		return BLAKE3, nil
	}
	return 0, fmt.Errorf("hash: unknown algorithm %q", name)
}

func (a Algorithm) newState() gohash.Hash {
	switch a {
	case SHA3_256:
		return sha3.New256()
	case BLAKE3:
		return blake3.New()
	default:
		return sha256.New()
	}
}

// Hash accumulates a transcript and reduces its digest to an integer.
//
// In raw mode values are written back to back with no separators. In framed
// mode every value, including the leading domain tag, is preceded by its length
// as a 4 byte big endian integer, so field boundaries are unambiguous.
type Hash struct {
	h      gohash.Hash
	framed bool
}

// New returns a raw mode Hash.
func New(alg Algorithm) *Hash {
	return &Hash{h: alg.newState()}
}

// NewFramed returns a framed mode Hash whose transcript starts with domain.
func NewFramed(alg Algorithm, domain string) *Hash {
	h := &Hash{h: alg.newState(), framed: true}
	h.write([]byte(domain))
	return h
}

func (h *Hash) write(b []byte) {
	if h.framed {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(b)))
		_, _ = h.h.Write(length[:])
	}
	_, _ = h.h.Write(b)
}

// WriteAny writes each value to the transcript. Integers are written as their
// decimal text, strings as their UTF-8 bytes.
func (h *Hash) WriteAny(data ...interface{}) error {
	for _, d := range data {
		switch t := d.(type) {
		case *big.Int:
			if t == nil {
				return fmt.Errorf("hash.WriteAny: nil *big.Int")
			}
			h.write([]byte(t.String()))
		case string:
			h.write([]byte(t))
		case []byte:
			h.write(t)
		case fmt.Stringer:
			h.write([]byte(t.String()))
		default:
			return fmt.Errorf("hash.WriteAny: invalid type provided as input: %T", d)
		}
	}
	return nil
}

// Sum returns the digest of the transcript so far.
func (h *Hash) Sum() []byte {
	return h.h.Sum(nil)
}

// Int interprets the digest as a big endian unsigned integer.
func (h *Hash) Int() *big.Int {
	return new(big.Int).SetBytes(h.Sum())
}

// Mod returns the digest integer reduced modulo m.
func (h *Hash) Mod(m *big.Int) *big.Int {
	z := h.Int()
	return z.Mod(z, m)
}
