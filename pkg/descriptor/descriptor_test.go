package descriptor

import (
	"strings"
	"testing"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/pathtable"
	"github.com/stretchr/testify/require"
)

func testParams(t *testing.T) Params {
	t.Helper()
	pub, err := NewFileOrTextIdentifier("", false)
	require.NoError(t, err)
	prep, err := NewFileOrTextIdentifier("", false)
	require.NoError(t, err)
	app, err := NewFileOrTextIdentifier("iso-forge", false)
	require.NoError(t, err)
	return Params{
		SystemIdentifier: "LINUX",
		VolumeIdentifier: "CDROM",
		SetSize:          1,
		SeqNum:           1,
		LogBlockSize:     2048,
		Publisher:        pub,
		Preparer:         prep,
		Application:      app,
	}
}

func newPrimaryWithTree(t *testing.T) *VolumeDescriptor {
	t.Helper()
	vd, err := NewPrimary(testParams(t))
	require.NoError(t, err)
	vd.AddPathTableRecord(pathtable.NewRoot(vd.RootDirectoryRecord()))

	dot, err := directory.NewDot(vd.Root, 1, false, 2048)
	require.NoError(t, err)
	require.NoError(t, vd.Root.AddChild(dot, vd, false))
	dotdot, err := directory.NewDotDot(vd.Root, 1, false, 2048)
	require.NoError(t, err)
	require.NoError(t, vd.Root.AddChild(dotdot, vd, false))
	return vd
}

func TestNewPrimaryDefaults(t *testing.T) {
	vd := newPrimaryWithTree(t)
	require.Equal(t, uint32(24), vd.SpaceSize)
	require.Equal(t, uint32(10), vd.PathTblSize)
	require.Equal(t, uint32(2), vd.PathTableNumExtents)
	require.Equal(t, uint32(16), vd.ExtentLocation())
	require.True(t, vd.IsPrimary())
	require.Len(t, vd.SystemIdentifier, 32)
	require.Equal(t, "LINUX", strings.TrimRight(vd.SystemIdentifier, " "))
}

func TestNewPrimaryValidation(t *testing.T) {
	p := testParams(t)
	p.SeqNum = 2 // greater than set size
	_, err := NewPrimary(p)
	require.Error(t, err)

	p = testParams(t)
	p.SystemIdentifier = string(make([]byte, 33))
	_, err = NewPrimary(p)
	require.Error(t, err)

	p = testParams(t)
	p.ApplicationUse = make([]byte, 513)
	_, err = NewPrimary(p)
	require.Error(t, err)
}

func TestPrimaryMarshalParseRoundTrip(t *testing.T) {
	vd := newPrimaryWithTree(t)
	data := vd.Marshal()
	require.Len(t, data, consts.ISO9660_SECTOR_SIZE)

	// Scenario fixture: type 1, "CD001", version 1.
	require.Equal(t, []byte{0x01, 'C', 'D', '0', '0', '1', 0x01}, data[:7])
	// space_size in LE at offset 80 must be 24.
	require.Equal(t, []byte{24, 0, 0, 0}, data[80:84])
	// and the BE half is its byte swap.
	require.Equal(t, []byte{0, 0, 0, 24}, data[84:88])

	parsed, err := ParsePrimary(data, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(24), parsed.SpaceSize)
	require.Equal(t, uint16(2048), parsed.LogBlockSize)
	require.Equal(t, uint32(10), parsed.PathTblSize)
	require.Equal(t, vd.SystemIdentifier, parsed.SystemIdentifier)
	require.True(t, parsed.Root.IsRoot)
}

func TestParsePrimaryRejectsCorruption(t *testing.T) {
	vd := newPrimaryWithTree(t)

	t.Run("BadIdentifier", func(t *testing.T) {
		data := vd.Marshal()
		copy(data[1:6], "XX001")
		_, err := ParsePrimary(data, nil)
		require.Error(t, err)
	})

	t.Run("BadVersion", func(t *testing.T) {
		data := vd.Marshal()
		data[6] = 2
		_, err := ParsePrimary(data, nil)
		require.Error(t, err)
	})

	t.Run("SpaceSizeEndianMismatch", func(t *testing.T) {
		data := vd.Marshal()
		data[84] = 0xff
		_, err := ParsePrimary(data, nil)
		require.Error(t, err)
	})

	t.Run("NonZeroUnused", func(t *testing.T) {
		data := vd.Marshal()
		data[75] = 1
		_, err := ParsePrimary(data, nil)
		require.Error(t, err)
	})

	t.Run("NonZeroReservedTail", func(t *testing.T) {
		data := vd.Marshal()
		data[2000] = 1
		_, err := ParsePrimary(data, nil)
		require.Error(t, err)
	})
}

func TestNewSupplementaryJoliet(t *testing.T) {
	svd, err := NewSupplementary(testParams(t))
	require.NoError(t, err)
	require.True(t, svd.Joliet)
	require.Equal(t, consts.JOLIET_LEVEL_3_ESCAPE, string(svd.EscapeSequences[:3]))

	data := svd.Marshal()
	parsed, err := ParseSupplementary(data, nil, 17)
	require.NoError(t, err)
	require.True(t, parsed.Joliet)
	require.Equal(t, uint32(17), parsed.ExtentLocation())

	// Identifiers are UTF-16BE: "LINUX" encodes with interleaved NULs.
	require.Equal(t, "\x00L\x00I\x00N\x00U\x00X", parsed.SystemIdentifier[:10])
}

func TestSupplementaryNotJolietWhenFlagged(t *testing.T) {
	svd, err := NewSupplementary(testParams(t))
	require.NoError(t, err)
	data := svd.Marshal()
	data[7] = 0x01 // flags bit 0 set: not Joliet
	parsed, err := ParseSupplementary(data, nil, 17)
	require.NoError(t, err)
	require.False(t, parsed.Joliet)
}

func TestSpaceSizeBookkeeping(t *testing.T) {
	vd := newPrimaryWithTree(t)

	vd.AddToSpaceSize(1)
	require.Equal(t, uint32(25), vd.SpaceSize)
	vd.AddToSpaceSize(2049)
	require.Equal(t, uint32(27), vd.SpaceSize)
	vd.RemoveFromSpaceSize(2048)
	require.Equal(t, uint32(26), vd.SpaceSize)
}

func TestAddEntryPathTableGrowth(t *testing.T) {
	vd := newPrimaryWithTree(t)
	require.Equal(t, uint32(2), vd.PathTableNumExtents)

	// Cross the 4096-byte path table boundary: four extents are claimed.
	before := vd.SpaceSize
	vd.AddEntry(0, 4200)
	require.Equal(t, uint32(4), vd.PathTableNumExtents)
	require.Equal(t, before+4, vd.SpaceSize)
}

func TestAddRemoveDirectoryEntry(t *testing.T) {
	vd := newPrimaryWithTree(t)

	dir, err := directory.NewDir("DIR1", vd.Root, 1, false, "", 2048)
	require.NoError(t, err)
	require.NoError(t, vd.Root.AddChild(dir, vd, false))
	vd.AddEntry(2048, uint32(pathtable.RecordLength(4)))
	num, err := vd.FindParentDirNum(vd.Root)
	require.NoError(t, err)
	vd.AddPathTableRecord(pathtable.NewDir("DIR1", dir, num))

	require.Len(t, vd.PathTableRecords, 2)
	require.Equal(t, uint32(22), vd.PathTblSize)
	require.Equal(t, uint32(25), vd.SpaceSize)
	require.Equal(t, uint16(1), vd.PathTableRecords[1].ParentDirectoryNum)
	require.Equal(t, uint16(2), vd.PathTableRecords[1].DirectoryNum)

	require.NoError(t, vd.RemoveEntry(2048, "DIR1"))
	require.Len(t, vd.PathTableRecords, 1)
	require.Equal(t, uint32(10), vd.PathTblSize)
	require.Equal(t, uint32(24), vd.SpaceSize)
}

func TestMarshalPathTable(t *testing.T) {
	vd := newPrimaryWithTree(t)
	vd.Root.SetExtentLocation(23)
	vd.UpdatePTRExtentLocations()

	le := vd.MarshalPathTable(true)
	require.Len(t, le, consts.ISO9660_PATH_TABLE_UNIT)
	require.Equal(t, []byte{1, 0, 23, 0, 0, 0, 1, 0, 0, 0}, le[:10])

	be := vd.MarshalPathTable(false)
	require.Equal(t, []byte{1, 0, 0, 0, 0, 23, 0, 1, 0, 0}, be[:10])
}

func TestBootRecord(t *testing.T) {
	br := NewBootRecord(consts.EL_TORITO_BOOT_SYSTEM_ID)
	require.True(t, br.IsElTorito())
	br.UpdateBootSystemUse([]byte{0x19, 0, 0, 0})

	data := br.Marshal()
	parsed, err := ParseBootRecord(data, 17)
	require.NoError(t, err)
	require.True(t, parsed.IsElTorito())
	require.Equal(t, byte(0x19), parsed.BootSystemUse[0])
	require.Equal(t, uint32(17), parsed.ExtentLocation())

	data[0] = 0x05
	_, err = ParseBootRecord(data, 17)
	require.Error(t, err)
}

func TestSetTerminator(t *testing.T) {
	st := NewSetTerminator()
	data := st.Marshal()
	require.Equal(t, byte(0xff), data[0])

	parsed, err := ParseSetTerminator(data, 18)
	require.NoError(t, err)
	require.Equal(t, uint32(18), parsed.ExtentLocation())

	// Non-conformant trailing bytes are tolerated.
	data[100] = 0x42
	_, err = ParseSetTerminator(data, 18)
	require.NoError(t, err)
}

func TestVersionDescriptor(t *testing.T) {
	v := NewVersionDescriptor()
	require.Equal(t, make([]byte, 2048), v.Marshal(2048))
	v.SetExtentLocation(19)
	require.Equal(t, uint32(19), v.ExtentLocation())
}

func TestFileOrTextIdentifier(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		ident, err := NewFileOrTextIdentifier("some publisher", false)
		require.NoError(t, err)
		rec := ident.Record()
		require.Len(t, rec, 128)
		require.Equal(t, byte('s'), rec[0])

		parsed, err := ParseFileOrTextIdentifier(rec, true)
		require.NoError(t, err)
		require.False(t, parsed.IsFile)
	})

	t.Run("File", func(t *testing.T) {
		ident, err := NewFileOrTextIdentifier("README.TXT;1", true)
		require.NoError(t, err)
		require.NoError(t, ident.CheckFilename(true))
		rec := ident.Record()
		require.Len(t, rec, 128)
		require.Equal(t, byte(0x5f), rec[0])

		parsed, err := ParseFileOrTextIdentifier(rec, true)
		require.NoError(t, err)
		require.True(t, parsed.IsFile)
		require.Equal(t, "README.TXT;1", parsed.Filename)
	})

	t.Run("FileBadForPrimary", func(t *testing.T) {
		ident, err := NewFileOrTextIdentifier("NAME_PAST_LEVEL_ONE.TXT;1", true)
		require.NoError(t, err)
		require.Error(t, ident.CheckFilename(true))
		require.NoError(t, ident.CheckFilename(false))
	})

	t.Run("TooLong", func(t *testing.T) {
		_, err := NewFileOrTextIdentifier(string(make([]byte, 129)), false)
		require.Error(t, err)
	})
}
