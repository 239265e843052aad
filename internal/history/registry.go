package history

import (
	"github.com/transit-history/ingestor/internal/model"
)

// Registry assigns stable integer ids to shape variants. Lookup-or-create,
// append-only: an identity key is assigned an id exactly once and the row
// is never mutated afterwards. Allocation within a run is monotonic and
// gap-free; gaps across runs are acceptable.
type Registry struct {
	nextID  int64
	byKey   map[model.VariantKey]int64
	rows    []model.ShapeVariant
	created int
}

// NewRegistry builds a registry over the persisted variant rows. The next
// id continues from the persisted high-water mark, or starts at the
// baseline when the table is empty.
func NewRegistry(baselineVariantID int64, existing []model.ShapeVariant) *Registry {
	reg := &Registry{
		nextID: baselineVariantID,
		byKey:  make(map[model.VariantKey]int64, len(existing)),
		rows:   append([]model.ShapeVariant(nil), existing...),
	}
	for _, v := range existing {
		reg.byKey[v.Key()] = v.ShapeVariantID
		if v.ShapeVariantID >= reg.nextID {
			reg.nextID = v.ShapeVariantID + 1
		}
	}
	return reg
}

// Ensure returns the id for the identity key, creating a new variant row
// when the key has never been seen.
func (r *Registry) Ensure(key model.VariantKey) int64 {
	if id, ok := r.byKey[key]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.byKey[key] = id
	r.rows = append(r.rows, model.ShapeVariant{
		ShapeVariantID: id,
		VersionID:      key.VersionID,
		ShapeID:        key.ShapeID,
		Headsign:       key.Headsign,
		IsMain:         key.IsMain,
	})
	r.created++
	return id
}

// Variants returns the full variant table, persisted rows first, new rows
// in allocation order.
func (r *Registry) Variants() []model.ShapeVariant {
	return r.rows
}

// Created returns how many variants this registry instance allocated.
func (r *Registry) Created() int {
	return r.created
}
