package wire_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/wire"
)

func TestRoundTripDate(t *testing.T) {
	data, err := wire.Encode(wire.Date{ISO: "2026-07-31T00:00:00.000Z"})
	require.NoError(t, err)

	out, err := wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, wire.Date{ISO: "2026-07-31T00:00:00.000Z"}, out)
}

func TestRoundTripRegExp(t *testing.T) {
	data, err := wire.Encode(wire.RegExp{Source: "^a+$", Flags: "gi"})
	require.NoError(t, err)

	out, err := wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, wire.RegExp{Source: "^a+$", Flags: "gi"}, out)
}

func TestRoundTripMapAndSet(t *testing.T) {
	data, err := wire.Encode(wire.WireMap{"a": float64(1), "b": wire.WireSet{float64(1), float64(2)}})
	require.NoError(t, err)

	out, err := wire.Decode(data)
	require.NoError(t, err)
	m, ok := out.(wire.WireMap)
	require.True(t, ok)
	require.Equal(t, float64(1), m["a"])
	set, ok := m["b"].(wire.WireSet)
	require.True(t, ok)
	require.Equal(t, wire.WireSet{float64(1), float64(2)}, set)
}

func TestRoundTripBigInt(t *testing.T) {
	n, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	data, err := wire.Encode(wire.BigInt{n})
	require.NoError(t, err)

	out, err := wire.Decode(data)
	require.NoError(t, err)
	got, ok := out.(wire.BigInt)
	require.True(t, ok)
	require.Equal(t, 0, n.Cmp(got.Int))
}

func TestRoundTripBytes(t *testing.T) {
	data, err := wire.Encode(wire.Bytes{0x01, 0x02, 0xff})
	require.NoError(t, err)

	out, err := wire.Decode(data)
	require.NoError(t, err)
	require.Equal(t, wire.Bytes{0x01, 0x02, 0xff}, out)
}

func TestUndefinedDistinctFromNull(t *testing.T) {
	undefData, err := wire.Encode(wire.Undefined{})
	require.NoError(t, err)
	nullData, err := wire.Encode(nil)
	require.NoError(t, err)
	require.NotEqual(t, string(undefData), string(nullData))

	undefOut, err := wire.Decode(undefData)
	require.NoError(t, err)
	require.Equal(t, wire.Undefined{}, undefOut)

	nullOut, err := wire.Decode(nullData)
	require.NoError(t, err)
	require.Nil(t, nullOut)
}

func TestNaNDistinctFromNull(t *testing.T) {
	data, err := wire.Encode(math.NaN())
	require.NoError(t, err)

	out, err := wire.Decode(data)
	require.NoError(t, err)
	f, ok := out.(float64)
	require.True(t, ok)
	require.True(t, math.IsNaN(f))
}

func TestCallRoundTrip(t *testing.T) {
	data, err := wire.EncodeCall([]any{float64(1), "two", wire.Date{ISO: "2026-01-01T00:00:00.000Z"}})
	require.NoError(t, err)

	args, err := wire.DecodeCall(data)
	require.NoError(t, err)
	require.Len(t, args, 3)
	require.Equal(t, float64(1), args[0])
	require.Equal(t, "two", args[1])
	require.Equal(t, wire.Date{ISO: "2026-01-01T00:00:00.000Z"}, args[2])
}
