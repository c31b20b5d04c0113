package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBothByteOrders32(t *testing.T) {
	t.Run("Marshal", func(t *testing.T) {
		data := MarshalBothByteOrders32(0x12345678)
		require.Equal(t, [8]byte{0x78, 0x56, 0x34, 0x12, 0x12, 0x34, 0x56, 0x78}, data)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		data := MarshalBothByteOrders32(24)
		val, err := UnmarshalUint32LSBMSB(data[:])
		require.NoError(t, err)
		require.Equal(t, uint32(24), val)
	})

	t.Run("Mismatch", func(t *testing.T) {
		data := MarshalBothByteOrders32(24)
		data[0] = 25
		_, err := UnmarshalUint32LSBMSB(data[:])
		require.Error(t, err)
	})

	t.Run("Short", func(t *testing.T) {
		_, err := UnmarshalUint32LSBMSB([]byte{1, 2, 3})
		require.Error(t, err)
	})
}

func TestBothByteOrders16(t *testing.T) {
	t.Run("Marshal", func(t *testing.T) {
		data := MarshalBothByteOrders16(0x1234)
		require.Equal(t, [4]byte{0x34, 0x12, 0x12, 0x34}, data)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		data := MarshalBothByteOrders16(2048)
		val, err := UnmarshalUint16LSBMSB(data[:])
		require.NoError(t, err)
		require.Equal(t, uint16(2048), val)
	})

	t.Run("Mismatch", func(t *testing.T) {
		_, err := UnmarshalUint16LSBMSB([]byte{0x34, 0x12, 0x12, 0x35})
		require.Error(t, err)
	})
}

func TestSwab(t *testing.T) {
	require.Equal(t, uint32(0x78563412), Swab32(0x12345678))
	require.Equal(t, uint16(0x3412), Swab16(0x1234))
	require.Equal(t, uint32(0x12345678), Swab32(Swab32(0x12345678)))
}

func TestCeilingDiv(t *testing.T) {
	require.Equal(t, uint32(0), CeilingDiv(0, 2048))
	require.Equal(t, uint32(1), CeilingDiv(1, 2048))
	require.Equal(t, uint32(1), CeilingDiv(2048, 2048))
	require.Equal(t, uint32(2), CeilingDiv(2049, 2048))
}

func TestPadLen(t *testing.T) {
	require.Equal(t, int64(0), PadLen(2048, 2048))
	require.Equal(t, int64(2047), PadLen(1, 2048))
	require.Equal(t, int64(0), PadLen(0, 2048))
	require.Equal(t, int64(2), PadLen(4094, 4096))
}

func TestPadString(t *testing.T) {
	require.Equal(t, []byte("AB  "), PadString("AB", 4))
	require.Equal(t, []byte{'A', 0, 0}, PadNulString("A", 3))
}

func TestVolumeDescriptorDate(t *testing.T) {
	t.Run("UnspecifiedCanonical", func(t *testing.T) {
		raw := append([]byte("0000000000000000"), 0)
		d, err := ParseVolumeDescriptorDate(raw)
		require.NoError(t, err)
		require.False(t, d.Present)
		rec := d.Record()
		require.Equal(t, raw, rec[:])
	})

	t.Run("UnspecifiedAllZeroDigits", func(t *testing.T) {
		raw := []byte("00000000000000000")
		d, err := ParseVolumeDescriptorDate(raw)
		require.NoError(t, err)
		require.False(t, d.Present)
		// The raw form is preserved verbatim, not normalized.
		rec := d.Record()
		require.Equal(t, raw, rec[:])
	})

	t.Run("UnspecifiedAllNul", func(t *testing.T) {
		raw := make([]byte, 17)
		d, err := ParseVolumeDescriptorDate(raw)
		require.NoError(t, err)
		require.False(t, d.Present)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		want := time.Date(2015, 6, 1, 12, 30, 45, 500_000_000, time.UTC)
		d := NewVolumeDescriptorDate(want)
		require.True(t, d.Present)
		rec := d.Record()
		require.Equal(t, "2015060112304550", string(rec[:16]))
		require.Equal(t, byte(0), rec[16])

		parsed, err := ParseVolumeDescriptorDate(rec[:])
		require.NoError(t, err)
		require.Equal(t, want, parsed.Time())
	})

	t.Run("NonZeroOffset", func(t *testing.T) {
		loc := time.FixedZone("", 3*3600)
		d := NewVolumeDescriptorDate(time.Date(2015, 12, 31, 23, 59, 30, 0, loc))
		rec := d.Record()
		require.Equal(t, byte(12), rec[16])
	})

	t.Run("ZeroTime", func(t *testing.T) {
		d := NewVolumeDescriptorDate(time.Time{})
		require.False(t, d.Present)
		rec := d.Record()
		require.Equal(t, vdDateEmpty, string(rec[:]))
	})

	t.Run("BadLength", func(t *testing.T) {
		_, err := ParseVolumeDescriptorDate([]byte("2015"))
		require.Error(t, err)
	})
}

func TestRecordingTimestamp(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		want := time.Date(2015, 3, 14, 9, 26, 53, 0, time.UTC)
		ts := NewRecordingTimestamp(want)
		rec := ts.Record()
		require.Equal(t, [7]byte{115, 3, 14, 9, 26, 53, 0}, rec)

		parsed, err := ParseRecordingTimestamp(rec[:])
		require.NoError(t, err)
		require.Equal(t, want, parsed.Time())
	})

	t.Run("NegativeOffset", func(t *testing.T) {
		loc := time.FixedZone("", -5*3600)
		ts := NewRecordingTimestamp(time.Date(2015, 1, 1, 0, 0, 0, 0, loc))
		require.Equal(t, int8(-20), ts.GMTOffset)
		rec := ts.Record()
		parsed, err := ParseRecordingTimestamp(rec[:])
		require.NoError(t, err)
		require.Equal(t, int8(-20), parsed.GMTOffset)
	})

	t.Run("BadLength", func(t *testing.T) {
		_, err := ParseRecordingTimestamp([]byte{1, 2, 3})
		require.Error(t, err)
	})
}
