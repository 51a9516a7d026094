package tick

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func initTicks(t *testing.T, ticks ...int32) Bitmap {
	b := Bitmap{}
	for _, tk := range ticks {
		require.NoError(t, FlipTick(b, tk, 1))
	}
	return b
}

func TestIsInitialized(t *testing.T) {
	b := Bitmap{}
	require.False(t, IsInitialized(b, 1, 1))

	require.NoError(t, FlipTick(b, 1, 1))
	require.True(t, IsInitialized(b, 1, 1))

	require.NoError(t, FlipTick(b, 1, 1))
	require.False(t, IsInitialized(b, 1, 1))
	require.Empty(t, b)

	require.NoError(t, FlipTick(b, 2, 1))
	require.False(t, IsInitialized(b, 1, 1))

	require.NoError(t, FlipTick(b, 1+256, 1))
	require.True(t, IsInitialized(b, 257, 1))
	require.False(t, IsInitialized(b, 1, 1))
}

func TestFlipTickRejectsUnalignedTick(t *testing.T) {
	require.Error(t, FlipTick(Bitmap{}, 5, 10))
}

func TestFlipTickNegative(t *testing.T) {
	b := initTicks(t, -230)
	word := b.Word(-1)
	require.Equal(t, 27, word.BitLen())

	b = initTicks(t, -230, -259, -229, 500, -259, -229, -259)
	require.True(t, IsInitialized(b, -230, 1))
	require.True(t, IsInitialized(b, -259, 1))
	require.True(t, IsInitialized(b, 500, 1))
	require.False(t, IsInitialized(b, -229, 1))
}

var bitmapTicks = []int32{-200, -55, -4, 70, 78, 84, 139, 240, 535}

func TestNextInitializedTickWithinOneWordRight(t *testing.T) {
	b := initTicks(t, bitmapTicks...)
	cases := []struct {
		from        int32
		next        int32
		initialized bool
	}{
		{78, 84, true},
		{-55, -4, true},
		{77, 78, true},
		{-56, -55, true},
		{255, 511, false},
		{-257, -200, true},
		{383, 511, false},
		{340, 511, false},
		{508, 511, false},
		{535, 767, false},
	}
	for _, tc := range cases {
		next, initialized := NextInitializedTickWithinOneWord(b, tc.from, 1, false)
		require.Equal(t, tc.next, next, "from %d", tc.from)
		require.Equal(t, tc.initialized, initialized, "from %d", tc.from)
	}

	require.NoError(t, FlipTick(b, 340, 1))
	next, initialized := NextInitializedTickWithinOneWord(b, 328, 1, false)
	require.Equal(t, int32(340), next)
	require.True(t, initialized)
}

func TestNextInitializedTickWithinOneWordLeft(t *testing.T) {
	b := initTicks(t, bitmapTicks...)
	cases := []struct {
		from        int32
		next        int32
		initialized bool
	}{
		{78, 78, true},
		{79, 78, true},
		{258, 256, false},
		{256, 256, false},
		{72, 70, true},
		{-257, -512, false},
		{1023, 768, false},
		{900, 768, false},
	}
	for _, tc := range cases {
		next, initialized := NextInitializedTickWithinOneWord(b, tc.from, 1, true)
		require.Equal(t, tc.next, next, "from %d", tc.from)
		require.Equal(t, tc.initialized, initialized, "from %d", tc.from)
	}

	require.NoError(t, FlipTick(b, 329, 1))
	next, initialized := NextInitializedTickWithinOneWord(b, 456, 1, true)
	require.Equal(t, int32(329), next)
	require.True(t, initialized)
}

func TestNextInitializedTickWithSpacing(t *testing.T) {
	b := Bitmap{}
	require.NoError(t, FlipTick(b, -60, 60))
	require.NoError(t, FlipTick(b, 120, 60))

	next, initialized := NextInitializedTickWithinOneWord(b, -1, 60, true)
	require.Equal(t, int32(-60), next)
	require.True(t, initialized)

	next, initialized = NextInitializedTickWithinOneWord(b, -60, 60, false)
	require.Equal(t, int32(120), next)
	require.True(t, initialized)
}

func TestNextInitializedTickAcrossWords(t *testing.T) {
	b := initTicks(t, bitmapTicks...)

	next, ok := NextInitializedTick(b, 241, 1, false, 10_000)
	require.True(t, ok)
	require.Equal(t, int32(535), next)

	next, ok = NextInitializedTick(b, 241, 1, false, 500)
	require.False(t, ok)
	require.Equal(t, int32(500), next)

	next, ok = NextInitializedTick(b, -201, 1, true, -10_000)
	require.False(t, ok)
	require.Equal(t, int32(-10_000), next)

	next, ok = NextInitializedTick(b, 1000, 1, true, -10_000)
	require.True(t, ok)
	require.Equal(t, int32(535), next)
}

func TestFlipTickInvolution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		spacing := rapid.SampledFrom([]int32{1, 10, 60, 200}).Draw(t, "spacing")
		b := Bitmap{}
		ticks := rapid.SliceOfN(rapid.Int32Range(-887272/spacing, 887272/spacing), 1, 30).Draw(t, "ticks")
		for _, c := range ticks {
			if err := FlipTick(b, c*spacing, spacing); err != nil {
				t.Fatal(err)
			}
		}
		for _, c := range ticks {
			if err := FlipTick(b, c*spacing, spacing); err != nil {
				t.Fatal(err)
			}
		}
		if len(b) != 0 {
			t.Fatalf("bitmap not empty after flipping every tick twice: %d words", len(b))
		}
	})
}
