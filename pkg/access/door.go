package access

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// MinGeofencePrefix is the shortest allowed prefix accepted by CheckGeofence.
const MinGeofencePrefix = 6

var (
	ErrDuplicateDoor  = errors.New("access: duplicate door")
	ErrGeofencePrefix = errors.New("access: geohash prefix too short")
)

// Door is a physical access point guarded by a geofence.
type Door struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	GeohashPrefix string `json:"geohashPrefix"`
}

// Contains reports whether geohash lies inside the door's geofence. A door
// whose prefix is too short contains nothing.
func (d Door) Contains(geohash string) bool {
	return CheckGeofence(geohash, d.GeohashPrefix)
}

// DefaultDoors returns the built-in door list.
func DefaultDoors() []Door {
	return []Door{
		{ID: "101", Name: "Computer Lab A", GeohashPrefix: "t1q7hk"},
	}
}

// Registry is an immutable set of doors keyed by ID.
type Registry struct {
	doors map[string]Door
}

// NewRegistry indexes doors by ID. Every door needs a geohash prefix of at
// least MinGeofencePrefix characters.
func NewRegistry(doors []Door) (*Registry, error) {
	r := &Registry{doors: make(map[string]Door, len(doors))}
	for _, d := range doors {
		id := strings.TrimSpace(d.ID)
		if len(d.GeohashPrefix) < MinGeofencePrefix {
			return nil, errors.Wrapf(ErrGeofencePrefix, "door %s: %q", id, d.GeohashPrefix)
		}
		if _, ok := r.doors[id]; ok {
			return nil, errors.Wrap(ErrDuplicateDoor, id)
		}
		d.ID = id
		r.doors[id] = d
	}
	return r, nil
}

// Door looks up a door. Surrounding whitespace in id is ignored.
func (r *Registry) Door(id string) (Door, bool) {
	d, ok := r.doors[strings.TrimSpace(id)]
	return d, ok
}

// IDs returns the door IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.doors))
	for id := range r.doors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CheckGeofence is the standalone proximity rule: userHash must start with
// allowedPrefix and the prefix must be at least MinGeofencePrefix long.
func CheckGeofence(userHash, allowedPrefix string) bool {
	return len(allowedPrefix) >= MinGeofencePrefix && strings.HasPrefix(userHash, allowedPrefix)
}
