package sample

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

const maxIterations = 255

var (
	ErrMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", maxIterations)
	ErrRangeTooSmall = errors.New("sample: order too small to sample a scalar in [1, q-2]")
)

// readBits fills buf from rand. A short or failed read is retried; after
// maxIterations failures the source is considered broken and ErrMaxIterations
// is returned. There is no fallback source.
func readBits(rand io.Reader, buf []byte) error {
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rand, buf); err == nil {
			return nil
		}
	}
	return ErrMaxIterations
}

// ModN samples an element of ℤₙ uniformly by rejection.
func ModN(rand io.Reader, n *big.Int) (*big.Int, error) {
	if n.Sign() <= 0 {
		return nil, ErrRangeTooSmall
	}
	bits := n.BitLen()
	out := new(big.Int)
	buf := make([]byte, (bits+7)/8)
	// mask off the excess high bits so that each draw succeeds with probability > 1/2
	mask := byte(0xff)
	if excess := len(buf)*8 - bits; excess > 0 {
		mask = byte(0xff >> excess)
	}
	for i := 0; i < maxIterations; i++ {
		if err := readBits(rand, buf); err != nil {
			return nil, err
		}
		buf[0] &= mask
		out.SetBytes(buf)
		if out.Cmp(n) < 0 {
			return out, nil
		}
	}
	return nil, ErrMaxIterations
}

// Scalar returns a uniform scalar in [1, q-2].
// 0 and q-1 are never produced, so a nonce drawn here is never degenerate.
func Scalar(rand io.Reader, q *big.Int) (*big.Int, error) {
	// [1, q-2] holds q-2 values
	width := new(big.Int).Sub(q, big.NewInt(2))
	if width.Sign() <= 0 {
		return nil, ErrRangeTooSmall
	}
	s, err := ModN(rand, width)
	if err != nil {
		return nil, err
	}
	return s.Add(s, big.NewInt(1)), nil
}
