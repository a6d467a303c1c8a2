// Package group describes the cyclic group shared by every proof: a safe prime
// modulus P, a generator G of the order Q subgroup, and Q = (P-1)/2.
//
// Secrets and challenges live modulo Q; group elements live modulo P.
// A Params value is immutable once built and may be shared freely.
package group

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"

	"PrivAccess/pkg/math/arith"
	"PrivAccess/pkg/math/sample"
	"PrivAccess/pkg/pool"
)

// PrimeHex is the 1024-bit MODP prime of RFC 2409 (Oakley group 2).
// It is a safe prime and 2 generates its order (P-1)/2 subgroup.
const PrimeHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF"

// GeneratorHex is the generator paired with PrimeHex.
const GeneratorHex = "02"

var (
	ErrModulus   = errors.New("group: modulus must be an odd integer greater than 5")
	ErrGenerator = errors.New("group: generator must lie in [2, P-2]")
	ErrOrder     = errors.New("group: generator does not have order dividing (P-1)/2")
)

type Params struct {
	p *arith.Modulus
	q *arith.Modulus
	g *big.Int
}

// New parses the hex literals of P and G.
func New(primeHex, generatorHex string) (*Params, error) {
	p, err := arith.ParseHex(primeHex)
	if err != nil {
		return nil, err
	}
	g, err := arith.ParseHex(generatorHex)
	if err != nil {
		return nil, err
	}
	return FromInts(p, g)
}

// FromInts builds Params from P and G. Q is derived as (P-1)/2; its primality
// is assumed, not checked.
func FromInts(p, g *big.Int) (*Params, error) {
	if p.Cmp(big.NewInt(5)) <= 0 || p.Bit(0) == 0 {
		return nil, ErrModulus
	}
	pMinusOne := new(big.Int).Sub(p, big.NewInt(1))
	if g.Cmp(big.NewInt(2)) < 0 || g.Cmp(pMinusOne) >= 0 {
		return nil, ErrGenerator
	}
	q := new(big.Int).Rsh(pMinusOne, 1)
	return &Params{
		p: arith.ModulusFromN(p),
		q: arith.ModulusFromN(q),
		g: new(big.Int).Set(g),
	}, nil
}

var (
	defaultParams *Params
	defaultOnce   sync.Once
)

// Default returns the production parameters, parsing them on first use.
// A malformed built-in literal is a startup invariant violation and panics.
func Default() *Params {
	defaultOnce.Do(func() {
		params, err := New(PrimeHex, GeneratorHex)
		if err != nil {
			panic(err)
		}
		defaultParams = params
	})
	return defaultParams
}

// Test returns the toy group P = 23, G = 4, Q = 11. Vectors over it can be
// checked by hand. It offers no security.
func Test() *Params {
	params, _ := FromInts(big.NewInt(23), big.NewInt(4))
	return params
}

// Generate creates a fresh group over a random bits-sized safe prime. G = 4 is
// a nontrivial quadratic residue and so generates the whole order Q subgroup.
func Generate(ctx context.Context, rand io.Reader, bits int, pl *pool.Pool) (*Params, error) {
	p, err := sample.SafePrime(ctx, rand, bits, pl)
	if err != nil {
		return nil, err
	}
	return FromInts(p, big.NewInt(4))
}

// P returns a copy of the modulus.
func (params *Params) P() *big.Int { return params.p.Nat() }

// Q returns a copy of the subgroup order.
func (params *Params) Q() *big.Int { return params.q.Nat() }

// G returns a copy of the generator.
func (params *Params) G() *big.Int { return new(big.Int).Set(params.g) }

// ModP exposes arithmetic modulo P.
func (params *Params) ModP() *arith.Modulus { return params.p }

// ModQ exposes arithmetic modulo Q.
func (params *Params) ModQ() *arith.Modulus { return params.q }

// Exp returns G^e (mod P).
func (params *Params) Exp(e *big.Int) *big.Int {
	return params.p.Exp(params.g, e)
}

// PublicKey returns Y = G^x (mod P) for the private scalar x.
func (params *Params) PublicKey(x *big.Int) *big.Int {
	return params.Exp(x)
}

// Validate checks that G^Q ≡ 1 (mod P). It is not run by Default.
func (params *Params) Validate() error {
	if params.p.Exp(params.g, params.q.Nat()).Cmp(big.NewInt(1)) != 0 {
		return ErrOrder
	}
	return nil
}

// Equal reports whether both parameter sets describe the same group.
func (params *Params) Equal(other *Params) bool {
	if other == nil {
		return false
	}
	return params.p.Cmp(other.p.Nat()) == 0 && params.g.Cmp(other.g) == 0
}
