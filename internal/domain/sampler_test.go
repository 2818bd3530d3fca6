package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeArticles(location string, n int) []Article {
	out := make([]Article, n)
	for i := range out {
		out[i] = Article{
			Location: location,
			Date:     fmt.Sprintf("2024-06-%02d", 28-i),
			Title:    fmt.Sprintf("%s %d", location, i),
			Content:  "body",
		}
	}
	return out
}

func TestSample_EnoughDistrictArticles(t *testing.T) {
	pool := append(makeArticles("Dadu", 40), makeArticles("Sindh", 10)...)

	got, err := Sample("Dadu", "Sindh", pool, 30, NewSampleRand(1, 0))
	require.NoError(t, err)

	require.Len(t, got, 30)
	assert.Equal(t, pool[:30], got, "first k district articles in input order")
}

func TestSample_ProvinceFallback(t *testing.T) {
	local := makeArticles("Dadu", 4)
	regional := makeArticles("Sindh", 50)
	pool := append(append([]Article{}, local...), regional...)

	got, err := Sample("Dadu", "Sindh", pool, 30, NewSampleRand(7, 3))
	require.NoError(t, err)

	require.Len(t, got, 30)
	assert.Equal(t, local, got[:4])

	seen := make(map[string]bool)
	for _, a := range got[4:] {
		assert.Equal(t, "Sindh", a.Location)
		assert.False(t, seen[a.Title], "drawn without replacement: %s", a.Title)
		seen[a.Title] = true
	}
}

func TestSample_ClampsToAvailableProvinceArticles(t *testing.T) {
	pool := append(makeArticles("Dadu", 2), makeArticles("Sindh", 3)...)

	got, err := Sample("Dadu", "Sindh", pool, 30, nil)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestSample_OnlyProvinceArticles(t *testing.T) {
	pool := makeArticles("Sindh", 5)

	got, err := Sample("Thatta", "Sindh", pool, 30, NewSampleRand(1, 1))
	require.NoError(t, err)
	assert.ElementsMatch(t, pool, got)
}

func TestSample_NoData(t *testing.T) {
	pool := makeArticles("Balochistan", 5)

	got, err := Sample("Thatta", "Sindh", pool, 30, nil)
	require.ErrorIs(t, err, ErrInsufficientArticles)
	assert.Nil(t, got)
}

func TestSample_IgnoresOtherLocations(t *testing.T) {
	pool := append(makeArticles("Pakistan", 10), makeArticles("Badin", 10)...)

	_, err := Sample("Thatta", "Sindh", pool, 30, nil)
	require.ErrorIs(t, err, ErrInsufficientArticles)
}

func TestSample_DeterministicWithSeed(t *testing.T) {
	pool := append(makeArticles("Dadu", 1), makeArticles("Sindh", 100)...)

	a, err := Sample("Dadu", "Sindh", pool, 10, NewSampleRand(42, 5))
	require.NoError(t, err)
	b, err := Sample("Dadu", "Sindh", pool, 10, NewSampleRand(42, 5))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSample_NeverExceedsK(t *testing.T) {
	for _, tc := range []struct{ local, regional, k int }{
		{0, 0, 5}, {0, 3, 5}, {3, 0, 5}, {5, 5, 5}, {10, 10, 5}, {2, 100, 30},
	} {
		t.Run(fmt.Sprintf("%d_%d_%d", tc.local, tc.regional, tc.k), func(t *testing.T) {
			pool := append(makeArticles("Dadu", tc.local), makeArticles("Sindh", tc.regional)...)
			got, _ := Sample("Dadu", "Sindh", pool, tc.k, NewSampleRand(3, 0))
			assert.LessOrEqual(t, len(got), tc.k)
			assert.LessOrEqual(t, len(got), tc.local+tc.regional)
		})
	}
}
