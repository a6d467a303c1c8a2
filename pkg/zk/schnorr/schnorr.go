// Package zkschnorr implements non-interactive Schnorr identification bound to
// a location claim.
//
// The prover shows knowledge of x with Y = G^x (mod P):
//
//	R = G^r (mod P)
//	c = H(R, Y, location[:6]) (mod Q)
//	s = r + c⋅x (mod Q)
//
// and the verifier accepts iff G^s ≡ R⋅Y^c (mod P).
package zkschnorr

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	log "github.com/sirupsen/logrus"

	"PrivAccess/pkg/group"
	"PrivAccess/pkg/hash"
	"PrivAccess/pkg/math/arith"
	"PrivAccess/pkg/math/sample"
)

// LocationPrefixLength is the number of leading characters of a location claim
// that enter the challenge.
const LocationPrefixLength = 6

// framedDomain tags framed transcripts.
const framedDomain = "privaccess/schnorr/v1"

var (
	ErrNilParams        = errors.New("zkschnorr: nil group parameters")
	ErrInvalidSecret    = errors.New("zkschnorr: private key must be a positive integer")
	ErrNilProof         = errors.New("zkschnorr: nil proof")
	ErrMalformedProof   = errors.New("zkschnorr: malformed proof")
	ErrEquationMismatch = errors.New("zkschnorr: verification equation does not hold")
)

// Encoding selects how the challenge transcript is laid out.
type Encoding int

const (
	// EncodingConcat concatenates dec(R), dec(Y) and the truncated location with
	// no separators. It is the interoperable default.
	EncodingConcat Encoding = iota
	// EncodingFramed length-prefixes every field behind a domain tag.
	EncodingFramed
)

func (e Encoding) String() string {
	switch e {
	case EncodingConcat:
		return "concat"
	case EncodingFramed:
		return "framed"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// ParseEncoding maps a configuration name to an Encoding. The empty string
// selects EncodingConcat.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "concat":
		return EncodingConcat, nil
	case "framed":
		return EncodingFramed, nil
	}
	return 0, fmt.Errorf("zkschnorr: unknown challenge encoding %q", name)
}

type options struct {
	encoding  Encoding
	algorithm hash.Algorithm
	rand      io.Reader
}

// Option customizes a Prover or Verifier. Both sides must agree on the
// encoding and hash.
type Option func(*options)

// WithEncoding sets the transcript encoding.
func WithEncoding(e Encoding) Option {
	return func(o *options) { o.encoding = e }
}

// WithHash sets the challenge digest.
func WithHash(alg hash.Algorithm) Option {
	return func(o *options) { o.algorithm = alg }
}

// WithRand sets the nonce source. It must be a cryptographically secure
// generator that is safe for concurrent use.
func WithRand(r io.Reader) Option {
	return func(o *options) { o.rand = r }
}

func buildOptions(opts []Option) options {
	o := options{
		encoding:  EncodingConcat,
		algorithm: hash.SHA256,
		rand:      rand.Reader,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Proof is the record exchanged between prover and verifier. Numeric fields
// are decimal strings; Geohash is the full, untruncated location claim.
type Proof struct {
	PublicKey  string `json:"public_key" cbor:"public_key"`
	Commitment string `json:"commitment" cbor:"commitment"`
	Response   string `json:"response" cbor:"response"`
	Geohash    string `json:"geohash" cbor:"geohash"`
}

// TruncateLocation returns the first LocationPrefixLength characters of
// location, or location unchanged when it is shorter.
func TruncateLocation(location string) string {
	count := 0
	for i := range location {
		if count == LocationPrefixLength {
			return location[:i]
		}
		count++
	}
	return location
}

// Challenge derives c = H(R, Y, location prefix) mod Q using the default
// transcript (EncodingConcat over SHA-256) unless opts say otherwise.
func Challenge(params *group.Params, commitment, publicKey *big.Int, location string, opts ...Option) *big.Int {
	o := buildOptions(opts)
	return challenge(params, o, commitment, publicKey, location)
}

func challenge(params *group.Params, o options, commitment, publicKey *big.Int, location string) *big.Int {
	var h *hash.Hash
	if o.encoding == EncodingFramed {
		h = hash.NewFramed(o.algorithm, framedDomain)
	} else {
		h = hash.New(o.algorithm)
	}
	// only *big.Int and string reach here, WriteAny cannot fail
	_ = h.WriteAny(commitment, publicKey, TruncateLocation(location))
	return h.Mod(params.Q())
}

// Prover holds a private scalar and its cached public key.
// GenerateProof does not mutate the Prover and may be called concurrently.
type Prover struct {
	params *group.Params
	opts   options
	// private key x
	x *big.Int
	// public key Y = G^x (mod P)
	y *big.Int
}

// NewProver wraps the private key x. x is copied.
func NewProver(params *group.Params, x *big.Int, opts ...Option) (*Prover, error) {
	if params == nil {
		return nil, ErrNilParams
	}
	if x == nil || x.Sign() <= 0 {
		return nil, ErrInvalidSecret
	}
	secret := new(big.Int).Set(x)
	return &Prover{
		params: params,
		opts:   buildOptions(opts),
		x:      secret,
		y:      params.PublicKey(secret),
	}, nil
}

// PublicKey returns a copy of Y.
func (p *Prover) PublicKey() *big.Int {
	return new(big.Int).Set(p.y)
}

// GenerateProof draws a fresh nonce and proves knowledge of x bound to location.
// A failing randomness source is returned as an error; no proof is produced.
func (p *Prover) GenerateProof(location string) (*Proof, error) {
	r, err := sample.Scalar(p.opts.rand, p.params.Q())
	if err != nil {
		return nil, fmt.Errorf("zkschnorr: sampling nonce: %w", err)
	}
	return p.proveWithNonce(r, location), nil
}

// proveWithNonce must never be called twice with the same r: two responses
// under one nonce reveal x.
func (p *Prover) proveWithNonce(r *big.Int, location string) *Proof {
	commitment := p.params.Exp(r)                               // R = G^r (mod P)
	c := challenge(p.params, p.opts, commitment, p.y, location) // c = H(R, Y, loc) (mod Q)
	s := p.params.ModQ().Add(r, new(big.Int).Mul(c, p.x))       // s = r + c⋅x (mod Q)

	return &Proof{
		PublicKey:  p.y.String(),
		Commitment: commitment.String(),
		Response:   s.String(),
		Geohash:    location,
	}
}

// Verifier checks proofs. It holds no mutable state.
type Verifier struct {
	params *group.Params
	opts   options
}

// NewVerifier returns a Verifier over params.
func NewVerifier(params *group.Params, opts ...Option) *Verifier {
	return &Verifier{params: params, opts: buildOptions(opts)}
}

// Params returns the group the Verifier checks against.
func (v *Verifier) Params() *group.Params {
	return v.params
}

// parse decodes the numeric fields and rejects values outside their ranges:
// R and Y in [1, P-1], s in [0, Q-1].
func (v *Verifier) parse(proof *Proof) (y, commitment, s *big.Int, err error) {
	if y, err = arith.ParseDecimal(proof.PublicKey); err != nil {
		return nil, nil, nil, err
	}
	if commitment, err = arith.ParseDecimal(proof.Commitment); err != nil {
		return nil, nil, nil, err
	}
	if s, err = arith.ParseDecimal(proof.Response); err != nil {
		return nil, nil, nil, err
	}
	modP := v.params.ModP()
	if y.Sign() == 0 || modP.Cmp(y) <= 0 || commitment.Sign() == 0 || modP.Cmp(commitment) <= 0 {
		return nil, nil, nil, errors.New("group element out of range")
	}
	if v.params.ModQ().Cmp(s) <= 0 {
		return nil, nil, nil, errors.New("response out of range")
	}
	return y, commitment, s, nil
}

// Check verifies proof and explains a rejection. The error wraps
// ErrMalformedProof or ErrEquationMismatch.
func (v *Verifier) Check(proof *Proof) error {
	if proof == nil {
		return ErrNilProof
	}
	if v.params == nil {
		return ErrNilParams
	}
	y, commitment, s, err := v.parse(proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}

	prefix := TruncateLocation(proof.Geohash)
	entry := log.WithField("geofence", prefix)
	entry.Debugln("verifying identity proof")

	c := challenge(v.params, v.opts, commitment, y, proof.Geohash)
	entry.Debugf("challenge c = %v", c)

	modP := v.params.ModP()
	lhs := v.params.Exp(s)                      // lhs = G^s (mod P)
	rhs := modP.Mul(commitment, modP.Exp(y, c)) // rhs = R⋅Y^c (mod P)
	entry.Debugf("verification equation lhs=%v rhs=%v", lhs, rhs)

	if lhs.Cmp(rhs) != 0 {
		entry.Debugln("verification FAILED")
		return ErrEquationMismatch
	}
	entry.Debugln("verification PASSED")
	return nil
}

// Verify reports whether proof is valid. Malformed input and a failed equation
// both yield false.
func (v *Verifier) Verify(proof *Proof) bool {
	return v.Check(proof) == nil
}
