package zkschnorr

import (
	"bytes"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Proofbuf is used to store the byte stream during communication
type Proofbuf struct {
	Malbuf []byte
}

// wireProof drops the methods of Proof so cbor does not call back into
// MarshalBinary.
type wireProof Proof

// MarshalBinary encodes the proof as a CBOR map keyed by the wire field names.
func (p *Proof) MarshalBinary() ([]byte, error) {
	return cbor.Marshal((*wireProof)(p))
}

// UnmarshalBinary decodes a CBOR encoded proof.
func (p *Proof) UnmarshalBinary(data []byte) error {
	decoded := &wireProof{}
	if err := cbor.Unmarshal(data, decoded); err != nil {
		return err
	}
	*p = Proof(*decoded)
	return nil
}

// DecodeJSON parses the JSON wire form. Unknown fields are rejected.
func DecodeJSON(data []byte) (*Proof, error) {
	var proof Proof
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// NewProofMal generates a new Proof and Marshal it, return the Proofbuf
func NewProofMal(prover *Prover, location string) (*Proofbuf, error) {
	proof, err := prover.GenerateProof(location)
	if err != nil {
		return nil, err
	}
	buf, err := proof.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Proofbuf{Malbuf: buf}, nil
}

// VerifyMal can verify a Proof in Proofbuf Type. An undecodable buffer is an
// invalid proof.
func (p *Proofbuf) VerifyMal(verifier *Verifier) bool {
	if p == nil {
		return false
	}
	proof := &Proof{}
	if err := proof.UnmarshalBinary(p.Malbuf); err != nil {
		return false
	}
	return verifier.Verify(proof)
}
