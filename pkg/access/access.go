// Package access decides whether a proof opens a door: the claimed location
// must be inside the door's geofence, the proof must verify and its public key
// must belong to a known role.
package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"PrivAccess/pkg/pool"
	"PrivAccess/pkg/rbac"
	zkschnorr "PrivAccess/pkg/zk/schnorr"
)

var (
	ErrDoorNotFound    = errors.New("door not found")
	ErrOutsideGeofence = errors.New("location outside geofence")
	ErrGeohashMismatch = errors.New("proof bound to a different location")
	ErrReplay          = errors.New("proof already used")
	ErrInvalidProof    = errors.New("invalid zero-knowledge proof")
	ErrUnauthorized    = errors.New("unauthorized key")
)

// Request is one attempt to open a door.
type Request struct {
	DoorID  string           `json:"doorId"`
	Geohash string           `json:"geohash"`
	Proof   *zkschnorr.Proof `json:"proof"`
}

// Decision is the outcome of a Request. Reason is nil iff Granted.
type Decision struct {
	Granted     bool     `json:"granted"`
	DoorID      string   `json:"doorId"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	RequestID   string   `json:"requestId"`
	Reason      error    `json:"-"`
}

// Message renders the decision for the person at the door.
func (d *Decision) Message() string {
	if d.Granted {
		return fmt.Sprintf("Access Granted to %s", d.Role)
	}
	return fmt.Sprintf("Access Denied: %v", d.Reason)
}

// Controller runs the access pipeline for a set of doors.
type Controller struct {
	doors    *Registry
	verifier *zkschnorr.Verifier
	roles    *rbac.Table
	replay   *ReplayGuard
	hub      *StatusHub
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithReplayGuard rejects proofs whose commitment was already accepted at
// the same door.
func WithReplayGuard(g *ReplayGuard) ControllerOption {
	return func(c *Controller) { c.replay = g }
}

// WithStatusHub publishes grants on hub instead of a private one.
func WithStatusHub(hub *StatusHub) ControllerOption {
	return func(c *Controller) { c.hub = hub }
}

// NewController wires the pipeline. verifier must be built over the same
// group as roles.
func NewController(doors *Registry, verifier *zkschnorr.Verifier, roles *rbac.Table, opts ...ControllerOption) *Controller {
	c := &Controller{
		doors:    doors,
		verifier: verifier,
		roles:    roles,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hub == nil {
		c.hub = NewStatusHub(0)
	}
	return c
}

// Hub returns the status hub grants are published on.
func (c *Controller) Hub() *StatusHub {
	return c.hub
}

// Doors returns the door registry.
func (c *Controller) Doors() *Registry {
	return c.doors
}

// Scan announces that a device picked up the code of doorID.
func (c *Controller) Scan(doorID string) error {
	door, ok := c.doors.Door(doorID)
	if !ok {
		return ErrDoorNotFound
	}
	n := c.hub.Publish(door.ID, StatusConnected)
	log.WithField("door", door.ID).Debugf("scan delivered to %d displays", n)
	return nil
}

// Decide runs the checks in order and stops at the first failure.
func (c *Controller) Decide(ctx context.Context, req Request) *Decision {
	d := &Decision{DoorID: req.DoorID, RequestID: uuid.NewString()}
	logger := log.WithFields(log.Fields{"request": d.RequestID, "door": req.DoorID})

	if err := ctx.Err(); err != nil {
		d.Reason = err
		return d
	}
	if err := c.check(req, d); err != nil {
		d.Reason = err
		logger.Warnf("access denied: %v", err)
		return d
	}

	d.Granted = true
	c.hub.Publish(d.DoorID, StatusUnlocked)
	logger.Infof("access granted to %s", d.Role)
	return d
}

func (c *Controller) check(req Request, d *Decision) error {
	door, ok := c.doors.Door(req.DoorID)
	if !ok {
		return ErrDoorNotFound
	}
	d.DoorID = door.ID
	if !door.Contains(req.Geohash) {
		return ErrOutsideGeofence
	}
	if req.Proof == nil {
		return ErrInvalidProof
	}
	if req.Proof.Geohash != req.Geohash {
		return ErrGeohashMismatch
	}
	if c.replay != nil && c.replay.Seen(door.ID, req.Proof.Commitment) {
		return ErrReplay
	}
	if !c.verifier.Verify(req.Proof) {
		return ErrInvalidProof
	}
	role, ok := c.roles.Resolve(req.Proof.PublicKey)
	if !ok {
		return ErrUnauthorized
	}
	// only verified commitments are recorded, so nobody can burn a
	// commitment they merely observed
	if c.replay != nil && !c.replay.Record(door.ID, req.Proof.Commitment) {
		return ErrReplay
	}
	d.Role = role
	d.Permissions, _ = c.roles.Permissions(role)
	return nil
}

// DecideAll decides every request on the workers of pl. Requests for the
// same door are still guarded against replay across the batch.
func (c *Controller) DecideAll(ctx context.Context, pl *pool.Pool, reqs []Request) ([]*Decision, error) {
	decisions := make([]*Decision, len(reqs))
	err := pl.Parallelize(ctx, len(reqs), func(ctx context.Context, i int) error {
		decisions[i] = c.Decide(ctx, reqs[i])
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "access: batch decision")
	}
	return decisions, nil
}
