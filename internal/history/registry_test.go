package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transit-history/ingestor/internal/model"
)

func TestRegistry_BaselineAndMonotonicAllocation(t *testing.T) {
	reg := NewRegistry(100000, nil)

	a := reg.Ensure(model.VariantKey{VersionID: 100000, ShapeID: "S1", Headsign: "A", IsMain: true})
	b := reg.Ensure(model.VariantKey{VersionID: 100000, ShapeID: "S2", Headsign: "A", IsMain: false})

	assert.Equal(t, int64(100000), a)
	assert.Equal(t, int64(100001), b)
	assert.Equal(t, 2, reg.Created())
}

func TestRegistry_EnsureIsIdempotent(t *testing.T) {
	reg := NewRegistry(100000, nil)
	key := model.VariantKey{VersionID: 100000, ShapeID: "S1", Headsign: "A", IsMain: true}

	first := reg.Ensure(key)
	second := reg.Ensure(key)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, reg.Created())
	assert.Len(t, reg.Variants(), 1)
}

func TestRegistry_ContinuesFromPersistedHighWaterMark(t *testing.T) {
	existing := []model.ShapeVariant{
		{ShapeVariantID: 100005, VersionID: 100000, ShapeID: "S1", Headsign: "A", IsMain: true},
	}
	reg := NewRegistry(100000, existing)

	// Known key resolves to its persisted id.
	known := reg.Ensure(model.VariantKey{VersionID: 100000, ShapeID: "S1", Headsign: "A", IsMain: true})
	assert.Equal(t, int64(100005), known)
	assert.Equal(t, 0, reg.Created())

	fresh := reg.Ensure(model.VariantKey{VersionID: 100000, ShapeID: "S1", Headsign: "B", IsMain: false})
	assert.Equal(t, int64(100006), fresh)
}

func TestRegistry_IsMainDistinguishesVariants(t *testing.T) {
	reg := NewRegistry(100000, nil)

	main := reg.Ensure(model.VariantKey{VersionID: 100000, ShapeID: "S1", Headsign: "A", IsMain: true})
	side := reg.Ensure(model.VariantKey{VersionID: 100000, ShapeID: "S1", Headsign: "A", IsMain: false})

	require.NotEqual(t, main, side)
	assert.Len(t, reg.Variants(), 2)
}
