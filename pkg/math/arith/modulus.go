package arith

import (
	"errors"
	"math/big"
)

var (
	ErrEmptyDecimal   = errors.New("arith: empty decimal string")
	ErrInvalidDecimal = errors.New("arith: decimal string contains a non-digit character")
	ErrInvalidHex     = errors.New("arith: malformed hex literal")
)

// Modulus wraps a positive big.Int modulus n and exposes the modular operations
// the proof system needs. The wrapped value is never mutated after construction,
// so a Modulus can be shared between goroutines.
type Modulus struct {
	// represents modulus n
	n *big.Int
}

// ModulusFromN creates a simple wrapper around a given modulus n.
// The modulus is copied.
func ModulusFromN(n *big.Int) *Modulus {
	return &Modulus{
		n: new(big.Int).Set(n),
	}
}

// ModulusFromUint64 creates a Modulus from an integer.
func ModulusFromUint64(x uint64) *Modulus {
	return &Modulus{n: new(big.Int).SetUint64(x)}
}

// ModulusFromHex creates a new Modulus from a big endian hex string.
// An optional "0x" prefix is accepted.
func ModulusFromHex(hex string) (*Modulus, error) {
	n, err := ParseHex(hex)
	if err != nil {
		return nil, err
	}
	if n.Sign() <= 0 {
		return nil, ErrInvalidHex
	}
	return &Modulus{n: n}, nil
}

// Nat returns a copy of n.
func (m *Modulus) Nat() *big.Int {
	return new(big.Int).Set(m.n)
}

// BitLen returns the length of n in bits.
func (m *Modulus) BitLen() int {
	return m.n.BitLen()
}

// Cmp compares x with n.
func (m *Modulus) Cmp(x *big.Int) int {
	return m.n.Cmp(x)
}

// Exp returns xᵉ (mod n) in a new big.Int.
func (m *Modulus) Exp(x, e *big.Int) *big.Int {
	return ModPow(x, e, m.n)
}

// Mul returns x⋅y (mod n).
func (m *Modulus) Mul(x, y *big.Int) *big.Int {
	z := new(big.Int).Mul(x, y)
	return z.Mod(z, m.n)
}

// Add returns x+y (mod n).
func (m *Modulus) Add(x, y *big.Int) *big.Int {
	z := new(big.Int).Add(x, y)
	return z.Mod(z, m.n)
}

// Reduce returns x (mod n), always in [0, n).
func (m *Modulus) Reduce(x *big.Int) *big.Int {
	return new(big.Int).Mod(x, m.n)
}

// ModPow computes base^exp (mod modulus) by square-and-multiply over the bits of
// exp, most significant first. exp = 0 yields 1 and base ≡ 0 yields 0 for any
// positive exp. exp must be non-negative. The inputs are not modified.
func ModPow(base, exp, modulus *big.Int) *big.Int {
	if modulus.Cmp(big.NewInt(1)) == 0 {
		return new(big.Int)
	}
	b := new(big.Int).Mod(base, modulus)
	result := big.NewInt(1)
	for i := exp.BitLen() - 1; i >= 0; i-- {
		result.Mul(result, result)
		result.Mod(result, modulus)
		if exp.Bit(i) == 1 {
			result.Mul(result, b)
			result.Mod(result, modulus)
		}
	}
	return result
}

// ParseDecimal converts a string of ASCII digits into a big.Int.
// Signs, whitespace, underscores and any other non-digit byte are rejected
// instead of being skipped or truncated.
func ParseDecimal(s string) (*big.Int, error) {
	if s == "" {
		return nil, ErrEmptyDecimal
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, ErrInvalidDecimal
		}
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrInvalidDecimal
	}
	return n, nil
}

// ParseHex converts a big endian hex literal, optionally prefixed with "0x".
func ParseHex(s string) (*big.Int, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if s == "" {
		return nil, ErrInvalidHex
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return nil, ErrInvalidHex
		}
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, ErrInvalidHex
	}
	return n, nil
}
