package morton

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPack_InjectiveOverCube(t *testing.T) {
	const side = 8

	seen := make(map[Key]struct{})

	for x := uint64(0); x < side; x++ {
		for y := uint64(0); y < side; y++ {
			for z := uint64(0); z < side; z++ {
				key, err := Pack(side, x, y, z)
				require.NoError(t, err)

				_, dup := seen[key]
				require.False(t, dup, "duplicate key %d for (%d,%d,%d)", key, x, y, z)
				seen[key] = struct{}{}
			}
		}
	}

	require.Len(t, seen, side*side*side)
}

func TestPack_Unpack_RoundTrip(t *testing.T) {
	const side = 16

	tests := []struct{ x, y, z uint64 }{
		{0, 0, 0},
		{15, 15, 15},
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{7, 3, 12},
	}

	for _, tt := range tests {
		key, err := Pack(side, tt.x, tt.y, tt.z)
		require.NoError(t, err)

		x, y, z, err := Unpack(side, key)
		require.NoError(t, err)
		require.Equal(t, tt.x, x)
		require.Equal(t, tt.y, y)
		require.Equal(t, tt.z, z)
	}
}

func TestPack_NonPowerOfTwoSide(t *testing.T) {
	_, err := Pack(6, 0, 0, 0)
	require.Error(t, err)
}

func TestPack_CoordinateOutOfRange(t *testing.T) {
	_, err := Pack(8, 8, 0, 0)
	require.Error(t, err)
}

func TestPack_ZeroOrigin(t *testing.T) {
	key, err := Pack(4, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, Key(0), key)
}

func TestSort(t *testing.T) {
	keys := []Key{5, 1, 4, 2, 3, 0}
	Sort(keys)
	require.Equal(t, []Key{0, 1, 2, 3, 4, 5}, keys)
}

func TestUnpack_NonPowerOfTwoSide(t *testing.T) {
	_, _, _, err := Unpack(6, 0)
	require.Error(t, err)
}
