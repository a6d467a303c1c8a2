package zkschnorr

import (
	"context"

	"PrivAccess/pkg/pool"
)

// VerifyAll verifies every proof on the workers of pl. results[i] is the
// verdict for proofs[i]. An error is only returned when ctx or the pool is
// cancelled before all proofs were checked.
func (v *Verifier) VerifyAll(ctx context.Context, pl *pool.Pool, proofs []*Proof) ([]bool, error) {
	results := make([]bool, len(proofs))
	err := pl.Parallelize(ctx, len(proofs), func(_ context.Context, i int) error {
		results[i] = v.Verify(proofs[i])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
