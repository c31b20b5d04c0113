package encoding

import (
	"fmt"
	"time"
)

// VolumeDescriptorDate represents the 17-byte date format of ECMA-119
// 8.4.26.1: sixteen ASCII digits (YYYYMMDDhhmmsscc) followed by a signed
// GMT offset in 15-minute intervals. An all-zero string means the date is
// unspecified. The raw bytes are retained so that the exact on-disk form
// round-trips through a parse and re-record.
type VolumeDescriptorDate struct {
	Year       int
	Month      int
	DayOfMonth int
	Hour       int
	Minute     int
	Second     int
	Hundredths int
	GMTOffset  int8
	Present    bool

	raw [17]byte
}

const vdDateEmpty = "0000000000000000\x00"

// ParseVolumeDescriptorDate parses a 17-byte volume descriptor date. All
// three "unspecified" encodings seen in the wild are accepted: sixteen ASCII
// zeros with a NUL terminator, seventeen NULs, and seventeen ASCII zeros.
func ParseVolumeDescriptorDate(data []byte) (VolumeDescriptorDate, error) {
	var d VolumeDescriptorDate
	if len(data) != 17 {
		return d, fmt.Errorf("invalid ISO9660 date string length %d", len(data))
	}
	copy(d.raw[:], data)

	s := string(data)
	if s == vdDateEmpty || s == "\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00" || s == "00000000000000000" {
		return d, nil
	}

	if _, err := fmt.Sscanf(s[:16], "%4d%2d%2d%2d%2d%2d%2d",
		&d.Year, &d.Month, &d.DayOfMonth, &d.Hour, &d.Minute, &d.Second, &d.Hundredths); err != nil {
		return d, fmt.Errorf("malformed volume descriptor date %q: %w", s[:16], err)
	}
	d.GMTOffset = int8(data[16])
	d.Present = true
	return d, nil
}

// NewVolumeDescriptorDate creates a volume descriptor date from a time. The
// zero time produces the unspecified form.
func NewVolumeDescriptorDate(t time.Time) VolumeDescriptorDate {
	var d VolumeDescriptorDate
	if t.IsZero() {
		copy(d.raw[:], vdDateEmpty)
		return d
	}

	d.Year, d.Month, d.DayOfMonth = t.Year(), int(t.Month()), t.Day()
	d.Hour, d.Minute, d.Second = t.Hour(), t.Minute(), t.Second()
	d.Hundredths = t.Nanosecond() / 10_000_000
	d.GMTOffset = GMTOffset(t)
	d.Present = true

	copy(d.raw[:16], fmt.Sprintf("%04d%02d%02d%02d%02d%02d%02d",
		d.Year, d.Month, d.DayOfMonth, d.Hour, d.Minute, d.Second, d.Hundredths))
	d.raw[16] = byte(d.GMTOffset)
	return d
}

// Record returns the 17-byte on-disk form.
func (d VolumeDescriptorDate) Record() [17]byte {
	return d.raw
}

// Time converts the date back to a time.Time; the zero time if unspecified.
func (d VolumeDescriptorDate) Time() time.Time {
	if !d.Present {
		return time.Time{}
	}
	loc := time.UTC
	if d.GMTOffset != 0 {
		loc = time.FixedZone("", int(d.GMTOffset)*900)
	}
	return time.Date(d.Year, time.Month(d.Month), d.DayOfMonth,
		d.Hour, d.Minute, d.Second, d.Hundredths*10_000_000, loc)
}

// RecordingTimestamp represents the 7-byte recording date and time of
// ECMA-119 9.1.5: numeric years-since-1900, month, day, hour, minute,
// second, and a signed GMT offset in 15-minute intervals.
type RecordingTimestamp struct {
	YearsSince1900 uint8
	Month          uint8
	DayOfMonth     uint8
	Hour           uint8
	Minute         uint8
	Second         uint8
	GMTOffset      int8
}

// ParseRecordingTimestamp parses the 7-byte directory record timestamp.
func ParseRecordingTimestamp(data []byte) (RecordingTimestamp, error) {
	var ts RecordingTimestamp
	if len(data) != 7 {
		return ts, fmt.Errorf("invalid recording timestamp length %d", len(data))
	}
	ts.YearsSince1900 = data[0]
	ts.Month = data[1]
	ts.DayOfMonth = data[2]
	ts.Hour = data[3]
	ts.Minute = data[4]
	ts.Second = data[5]
	ts.GMTOffset = int8(data[6])
	return ts, nil
}

// NewRecordingTimestamp creates a recording timestamp from a time.
func NewRecordingTimestamp(t time.Time) RecordingTimestamp {
	return RecordingTimestamp{
		YearsSince1900: uint8(t.Year() - 1900),
		Month:          uint8(t.Month()),
		DayOfMonth:     uint8(t.Day()),
		Hour:           uint8(t.Hour()),
		Minute:         uint8(t.Minute()),
		Second:         uint8(t.Second()),
		GMTOffset:      GMTOffset(t),
	}
}

// Record returns the 7-byte on-disk form.
func (ts RecordingTimestamp) Record() [7]byte {
	return [7]byte{
		ts.YearsSince1900, ts.Month, ts.DayOfMonth,
		ts.Hour, ts.Minute, ts.Second, byte(ts.GMTOffset),
	}
}

// Time converts the timestamp back to a time.Time.
func (ts RecordingTimestamp) Time() time.Time {
	loc := time.UTC
	if ts.GMTOffset != 0 {
		loc = time.FixedZone("", int(ts.GMTOffset)*900)
	}
	return time.Date(int(ts.YearsSince1900)+1900, time.Month(ts.Month), int(ts.DayOfMonth),
		int(ts.Hour), int(ts.Minute), int(ts.Second), 0, loc)
}
