package sample

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"

	"PrivAccess/pkg/pool"
)

// MinSafePrimeBits is the smallest size SafePrime accepts. Below it (p-1)/2
// could itself be one of the small sieving primes and be wrongly rejected.
const MinSafePrimeBits = 32

var ErrSafePrimeBits = errors.New("sample: safe prime size below minimum")

const (
	// odd primes below this bound are used to discard candidates cheaply
	smallPrimeBound = 1 << 14
	// offsets scanned after each random starting point
	windowSize = 1 << 14
	// Miller-Rabin rounds on (p-1)/2
	safePrimeRounds = 20
)

var (
	smallPrimesOnce sync.Once
	smallPrimes     []uint64
)

func loadSmallPrimes() []uint64 {
	smallPrimesOnce.Do(func() {
		composite := make([]bool, smallPrimeBound)
		for n := 3; n < smallPrimeBound; n += 2 {
			if composite[n] {
				continue
			}
			smallPrimes = append(smallPrimes, uint64(n))
			for m := n * n; m < smallPrimeBound; m += 2 * n {
				composite[m] = true
			}
		}
	})
	return smallPrimes
}

// candidateStart draws a bits-sized odd number with its two top bits set and
// start = 3 (mod 4), the residue every safe prime above 5 has.
func candidateStart(rand io.Reader, bits int) (*big.Int, error) {
	buf := make([]byte, (bits+7)/8)
	if _, err := io.ReadFull(rand, buf); err != nil {
		return nil, err
	}
	start := new(big.Int).SetBytes(buf)
	for i := bits; i < len(buf)*8; i++ {
		start.SetBit(start, i, 0)
	}
	start.SetBit(start, bits-1, 1)
	start.SetBit(start, bits-2, 1)
	start.SetBit(start, 1, 1)
	start.SetBit(start, 0, 1)
	return start, nil
}

// passesSmallPrimes rejects start+offset when it is 0 or 1 modulo a small
// prime: then either p or (p-1)/2 has that prime as a factor.
func passesSmallPrimes(primes, residues []uint64, offset uint64) bool {
	for i, sp := range primes {
		if (residues[i]+offset)%sp <= 1 {
			return false
		}
	}
	return true
}

// scanWindow returns the first safe prime in start, start+4, ... below
// start+windowSize that still has bits bits, or nil.
func scanWindow(start *big.Int, bits int) *big.Int {
	primes := loadSmallPrimes()
	residues := make([]uint64, len(primes))
	modulus, r := new(big.Int), new(big.Int)
	for i, sp := range primes {
		residues[i] = r.Mod(start, modulus.SetUint64(sp)).Uint64()
	}

	p, q := new(big.Int), new(big.Int)
	for offset := uint64(0); offset < windowSize; offset += 4 {
		if !passesSmallPrimes(primes, residues, offset) {
			continue
		}
		p.Add(start, q.SetUint64(offset))
		if p.BitLen() > bits {
			return nil
		}
		q.Rsh(p, 1)
		// q fails far more often than p, test it first
		if !q.ProbablyPrime(safePrimeRounds) {
			continue
		}
		// Baillie-PSW on p is enough once q is prime
		if !p.ProbablyPrime(0) {
			continue
		}
		return new(big.Int).Set(p)
	}
	return nil
}

// trySafePrime scans one random window. It returns a *big.Int on success, the
// read error when rand fails, and nil when the window holds no safe prime.
func trySafePrime(rand io.Reader, bits int) interface{} {
	start, err := candidateStart(rand, bits)
	if err != nil {
		return err
	}
	if p := scanWindow(start, bits); p != nil {
		return p
	}
	return nil
}

// SafePrime searches for a bits-sized safe prime on all workers of pl.
func SafePrime(ctx context.Context, rand io.Reader, bits int, pl *pool.Pool) (*big.Int, error) {
	if bits < MinSafePrimeBits {
		return nil, ErrSafePrimeBits
	}
	reader := pool.NewLockedReader(rand)
	results, err := pl.Search(ctx, 1, func() interface{} {
		return trySafePrime(reader, bits)
	})
	if err != nil {
		return nil, err
	}
	switch res := results[0].(type) {
	case *big.Int:
		return res, nil
	case error:
		return nil, res
	}
	return nil, errors.New("sample: unexpected search result")
}
