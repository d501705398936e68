package progress

import (
	"bytes"
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBar_DisabledStillCounts(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	bar := New(WithTotal(10), WithWriter(&out), Disabled())

	bar.Update(3)
	bar.Update(4)
	assert.Equal(t, int64(7), bar.N())

	bar.Set(2)
	assert.Equal(t, int64(2), bar.N())

	require.NoError(t, bar.Close())
	require.NoError(t, bar.Close())
	assert.Empty(t, out.String())
}

func TestBar_WriteDisabled(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	bar := New(WithWriter(&out), Disabled())
	bar.Write("skipping RS_2011-01.zst")
	assert.Equal(t, "skipping RS_2011-01.zst\n", out.String())
}

func TestBar_Renders(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	bar := New(
		WithDescription("Indexing"),
		WithTotal(4),
		WithUnit("docs"),
		WithWriter(&out),
	)
	bar.Update(4)
	bar.Write("halfway")
	require.NoError(t, bar.Close())

	assert.Equal(t, int64(4), bar.N())
	assert.Contains(t, out.String(), "Indexing")
	assert.Contains(t, out.String(), "halfway")
}

func TestBar_Bytes(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	bar := New(
		WithTotal(2048),
		WithUnit("B"),
		WithUnitScale(true),
		WithUnitDivisor(1024),
		WithWriter(&out),
	)
	bar.Set(2048)
	require.NoError(t, bar.Close())
	assert.Equal(t, int64(2048), bar.N())
}

func TestIterate(t *testing.T) {
	t.Parallel()

	bar := New(WithTotal(5), Disabled())
	var got []int
	for v := range Iterate(slices.Values([]int{1, 2, 3, 4, 5}), bar) {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	assert.Equal(t, int64(5), bar.N())
}

func TestIterate_EarlyBreak(t *testing.T) {
	t.Parallel()

	bar := New(Disabled())
	for v := range Iterate(slices.Values([]string{"a", "b", "c"}), bar) {
		if v == "b" {
			break
		}
	}
	// "a" completed, "b" was interrupted.
	assert.Equal(t, int64(1), bar.N())
	assert.True(t, bar.closed)
}

func TestIterate2(t *testing.T) {
	t.Parallel()

	bar := New(Disabled())
	m := map[string]int{"x": 1, "y": 2}
	sum := 0
	for _, v := range Iterate2(maps.All(m), bar) {
		sum += v
	}
	assert.Equal(t, 3, sum)
	assert.Equal(t, int64(2), bar.N())
}

func TestNewFactory(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	off := NewFactory(false, &out)
	bar := off(WithDescription("Sampling"), WithTotal(3))
	bar.Update(3)
	require.NoError(t, bar.Close())
	assert.Empty(t, out.String())

	on := NewFactory(true, &out)
	bar = on(WithDescription("Sampling"), WithTotal(3))
	bar.Update(3)
	require.NoError(t, bar.Close())
	assert.Contains(t, out.String(), "Sampling")

	assert.Equal(t, int64(0), NoBars().N())
}
