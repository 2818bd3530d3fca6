package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultReference(t *testing.T) {
	ref := DefaultReference()

	districts := ref.Districts()
	assert.Len(t, districts, 68)
	assert.Equal(t, District{Name: "Chagai", Province: "Balochistan"}, districts[0])
	assert.Equal(t, District{Name: "Upper Dir", Province: "Khyber Pakhtunkhwa"}, districts[len(districts)-1])
	assert.Len(t, ref.Provinces(), 6)
	assert.Contains(t, ref.Features(), "food insecurity")

	for _, d := range districts {
		p, ok := ref.Province(d.Name)
		require.True(t, ok, d.Name)
		assert.True(t, ref.IsProvince(p), d.Name)
	}
}

func TestReference_Lookups(t *testing.T) {
	ref := DefaultReference()

	p, ok := ref.Province("Tharparkar")
	assert.True(t, ok)
	assert.Equal(t, "Sindh", p)

	_, ok = ref.Province("Lahore")
	assert.False(t, ok)

	assert.Equal(t, 0, ref.Index("Chagai"))
	assert.Equal(t, -1, ref.Index("Lahore"))
	assert.True(t, ref.IsLocation("Pakistan"))
	assert.True(t, ref.IsLocation("Punjab"))
	assert.True(t, ref.IsLocation("Swat"))
	assert.False(t, ref.IsLocation("Karachi"))
	assert.True(t, ref.IsFeature("locusts"))
	assert.False(t, ref.IsFeature("sunshine"))
}

func TestReference_ReturnsCopies(t *testing.T) {
	ref := DefaultReference()

	d := ref.Districts()
	d[0].Name = "mutated"
	assert.Equal(t, "Chagai", ref.Districts()[0].Name)
}

func TestLoadReference_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown province", "provinces: [Sindh]\ndistricts:\n  - province: Punjab\n    names: [Lahore]\n"},
		{"duplicate district", "provinces: [Sindh]\ndistricts:\n  - province: Sindh\n    names: [Dadu, Dadu]\n"},
		{"no provinces", "districts: []\n"},
		{"no districts", "provinces: [Sindh]\n"},
		{"malformed", "provinces: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadReference([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}
