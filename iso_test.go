package iso

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/stretchr/testify/require"
)

// memSink is an in-memory Sink for mastering tests.
type memSink struct {
	buf []byte
	pos int64
}

func (m *memSink) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memSink) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + offset
	}
	return m.pos, nil
}

func (m *memSink) Truncate(size int64) error {
	if size <= int64(len(m.buf)) {
		m.buf = m.buf[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

func master(t *testing.T, i *Image, opts ...WriteOption) []byte {
	t.Helper()
	sink := &memSink{}
	require.NoError(t, i.Write(sink, opts...))
	return sink.buf
}

func TestNewAndWriteMinimal(t *testing.T) {
	i, err := New(WithInterchangeLevel(1), WithVolumeIdentifier("CDROM"))
	require.NoError(t, err)

	data := master(t, i)
	require.Equal(t, 24*2048, len(data))

	// The PVD begins at byte 32768 with type 1, "CD001", version 1.
	require.Equal(t, []byte{0x01, 'C', 'D', '0', '0', '1', 0x01}, data[32768:32775])
	// space_size is 24, little-endian at offset 80 into the PVD.
	require.Equal(t, uint32(24), binary.LittleEndian.Uint32(data[32768+80:32768+84]))
	// The big-endian half is the byte swap of the little-endian half.
	require.Equal(t, uint32(24), binary.BigEndian.Uint32(data[32768+84:32768+88]))
}

func TestInvalidInterchangeLevel(t *testing.T) {
	_, err := New(WithInterchangeLevel(4))
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = New(WithInterchangeLevel(0))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNotInitializedAfterClose(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.NoError(t, i.Close())
	require.ErrorIs(t, i.AddDirectory("/DIR1", "", ""), ErrNotInitialized)
	require.ErrorIs(t, i.RmFile("/X", ""), ErrNotInitialized)
	require.ErrorIs(t, i.Write(&memSink{}), ErrNotInitialized)
	require.ErrorIs(t, i.Close(), ErrNotInitialized)
}

func TestAddDirectoryScenario(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.NoError(t, i.AddDirectory("/DIR1", "", ""))

	data := master(t, i)

	// Reopen the mastered bytes and inspect the structure.
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	root := reopened.PrimaryVolumeDescriptor().RootDirectoryRecord()
	require.Len(t, root.Children, 3)
	require.Equal(t, "\x00", root.Children[0].Ident)
	require.Equal(t, "\x01", root.Children[1].Ident)
	require.Equal(t, "DIR1", root.Children[2].Ident)

	ptrs := reopened.PrimaryVolumeDescriptor().PathTableRecords
	require.Len(t, ptrs, 2)
	require.Equal(t, "\x00", ptrs[0].DirectoryIdentifier)
	require.Equal(t, "DIR1", ptrs[1].DirectoryIdentifier)
	require.Equal(t, uint16(1), ptrs[1].ParentDirectoryNum)
	require.Equal(t, uint16(2), ptrs[1].DirectoryNum)
}

func TestAddFileAndReadBack(t *testing.T) {
	i, err := New()
	require.NoError(t, err)

	content := []byte("the quick brown fox")
	require.NoError(t, i.AddFile(bytes.NewReader(content), int64(len(content)), "/FOO.TXT;1", "", ""))

	data := master(t, i)
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, reopened.GetAndWrite("/FOO.TXT;1", &out, 0))
	require.Equal(t, content, out.Bytes())

	// Extent monotonicity: the file's data sits after its directory.
	rec, err := reopened.GetEntry("/FOO.TXT;1")
	require.NoError(t, err)
	root := reopened.PrimaryVolumeDescriptor().RootDirectoryRecord()
	require.Greater(t, rec.ExtentLocation(), root.ExtentLocation())
}

func TestAddFileValidation(t *testing.T) {
	i, err := New()
	require.NoError(t, err)

	require.ErrorIs(t, i.AddFile(bytes.NewReader(nil), 0, "no-slash", "", ""), ErrInvalidArgument)
	require.ErrorIs(t, i.AddFile(bytes.NewReader(nil), 0, "/bad name", "", ""), ErrInvalidArgument)
	require.ErrorIs(t, i.AddFile(bytes.NewReader(nil), maxFileLength+1, "/A.;1", "", ""), ErrInvalidArgument)
	// Level 1 limits names to 8.3.
	require.ErrorIs(t, i.AddFile(bytes.NewReader(nil), 0, "/AVERYLONGNAME.TXT;1", "", ""), ErrInvalidArgument)
	// Rock Ridge path on a non-Rock-Ridge image.
	require.ErrorIs(t, i.AddFile(bytes.NewReader(nil), 0, "/A.;1", "/a", ""), ErrInvalidArgument)
	// Joliet path on a non-Joliet image.
	require.ErrorIs(t, i.AddFile(bytes.NewReader(nil), 0, "/A.;1", "", "/a"), ErrInvalidArgument)
	// Nonexistent parent.
	require.ErrorIs(t, i.AddFile(bytes.NewReader(nil), 0, "/NODIR/A.;1", "", ""), ErrInvalidArgument)
}

func TestDuplicateFile(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.NoError(t, i.AddFile(bytes.NewReader(nil), 0, "/A.;1", "", ""))
	require.ErrorIs(t, i.AddFile(bytes.NewReader(nil), 0, "/A.;1", "", ""), ErrDuplicate)
}

func TestDepthLimit(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	path := ""
	for depth := 1; depth <= 7; depth++ {
		path += "/D" + string(rune('0'+depth))
		require.NoError(t, i.AddDirectory(path, "", ""))
	}
	require.ErrorIs(t, i.AddDirectory(path+"/D8", "", ""), ErrInvalidArgument)
}

func TestRmFileAndRmDirectory(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.NoError(t, i.AddDirectory("/DIR1", "", ""))
	require.NoError(t, i.AddFile(bytes.NewReader([]byte("x")), 1, "/DIR1/A.;1", "", ""))

	// A populated directory cannot be removed.
	require.ErrorIs(t, i.RmDirectory("/DIR1", ""), ErrInvalidArgument)
	// Kind mismatches.
	require.ErrorIs(t, i.RmFile("/DIR1", ""), ErrInvalidArgument)
	require.ErrorIs(t, i.RmDirectory("/DIR1/A.;1", ""), ErrInvalidArgument)
	require.ErrorIs(t, i.RmDirectory("/", ""), ErrInvalidArgument)
	// A Joliet path is only meaningful on a Joliet image.
	require.ErrorIs(t, i.RmFile("/DIR1/A.;1", "/dir1/a"), ErrInvalidArgument)

	require.NoError(t, i.RmFile("/DIR1/A.;1", ""))
	require.NoError(t, i.RmDirectory("/DIR1", ""))

	data := master(t, i)
	require.Equal(t, 24*2048, len(data))

	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, reopened.PrimaryVolumeDescriptor().RootDirectoryRecord().Children, 2)
	require.Len(t, reopened.PrimaryVolumeDescriptor().PathTableRecords, 1)
}

func TestJolietScenario(t *testing.T) {
	i, err := New(WithJoliet(true))
	require.NoError(t, err)
	require.NoError(t, i.AddFile(bytes.NewReader([]byte("j")), 1, "/FILE.;1", "", "/file"))

	data := master(t, i)
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	jvd := reopened.JolietVolumeDescriptor()
	require.NotNil(t, jvd)
	require.Len(t, jvd.PathTableRecords, 1)

	// The Joliet identifier is big-endian UTF-16.
	require.Len(t, jvd.RootDirectoryRecord().Children, 3)
	require.Equal(t, "\x00f\x00i\x00l\x00e", jvd.RootDirectoryRecord().Children[2].Ident)

	// The Joliet record shares the primary record's data extent.
	primary, err := reopened.GetEntry("/FILE.;1")
	require.NoError(t, err)
	require.Equal(t, primary.ExtentLocation(), jvd.RootDirectoryRecord().Children[2].ExtentLocation())

	// Joliet path resolution serves file data too.
	var out bytes.Buffer
	require.NoError(t, reopened.GetAndWrite("/file", &out, 0))
	require.Equal(t, []byte("j"), out.Bytes())
}

func TestJolietRemoval(t *testing.T) {
	i, err := New(WithJoliet(true))
	require.NoError(t, err)
	require.NoError(t, i.AddDirectory("/DIR1", "", "/dir1"))
	require.NoError(t, i.AddFile(bytes.NewReader([]byte("x")), 1, "/DIR1/A.;1", "", "/dir1/a"))

	// On a Joliet image the mirror's path is required.
	require.ErrorIs(t, i.RmFile("/DIR1/A.;1", ""), ErrInvalidArgument)
	require.ErrorIs(t, i.RmDirectory("/DIR1", ""), ErrInvalidArgument)

	require.NoError(t, i.RmFile("/DIR1/A.;1", "/dir1/a"))
	require.NoError(t, i.RmDirectory("/DIR1", "/dir1"))

	// Both hierarchies are back to just the root, and the space size is
	// back to a fresh Joliet image's.
	require.Equal(t, uint32(30), i.PrimaryVolumeDescriptor().SpaceSize)
	require.Equal(t, uint32(30), i.JolietVolumeDescriptor().SpaceSize)

	data := master(t, i)
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, reopened.PrimaryVolumeDescriptor().RootDirectoryRecord().Children, 2)
	require.Len(t, reopened.PrimaryVolumeDescriptor().PathTableRecords, 1)

	jvd := reopened.JolietVolumeDescriptor()
	require.Len(t, jvd.RootDirectoryRecord().Children, 2)
	require.Len(t, jvd.PathTableRecords, 1)
}

// findJolietChild returns the Joliet root child with the given identifier.
func findJolietChild(t *testing.T, i *Image, ident string) *directory.Record {
	t.Helper()
	for _, child := range i.JolietVolumeDescriptor().RootDirectoryRecord().Children {
		if child.Ident == ident {
			return child
		}
	}
	t.Fatalf("no Joliet child %q", ident)
	return nil
}

func TestJolietFilePlacementAcrossMutations(t *testing.T) {
	i, err := New(WithJoliet(true))
	require.NoError(t, err)

	content := []byte("payload")
	require.NoError(t, i.AddFile(bytes.NewReader(content), int64(len(content)), "/F.;1", "", "/f"))

	// A later mutation moves the file's body; the Joliet mirror must keep
	// tracking the primary record through the reshuffle.
	require.NoError(t, i.AddDirectory("/D", "", "/d"))

	primary, err := i.GetEntry("/F.;1")
	require.NoError(t, err)
	mirror := findJolietChild(t, i, "\x00f")
	require.Same(t, primary, mirror.PrimaryRecord)
	require.Equal(t, primary.ExtentLocation(), mirror.ExtentLocation())

	data := master(t, i)
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	// The Joliet hierarchy resolves first in GetAndWrite, so this read
	// exercises the mirror's extent.
	var out bytes.Buffer
	require.NoError(t, reopened.GetAndWrite("/f", &out, 0))
	require.Equal(t, content, out.Bytes())

	// The parse relinked the pair; a further mutation keeps them aligned.
	require.NoError(t, reopened.AddDirectory("/E", "", "/e"))
	reopenedPrimary, err := reopened.GetEntry("/F.;1")
	require.NoError(t, err)
	reopenedMirror := findJolietChild(t, reopened, "\x00f")
	require.Equal(t, reopenedPrimary.ExtentLocation(), reopenedMirror.ExtentLocation())

	second := &memSink{}
	require.NoError(t, reopened.Write(second))
	again, err := Open(bytes.NewReader(second.buf))
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, again.GetAndWrite("/f", &out, 0))
	require.Equal(t, content, out.Bytes())
}

func TestRockRidgeScenario(t *testing.T) {
	i, err := New(WithRockRidge(true))
	require.NoError(t, err)
	require.True(t, i.HasRockRidge())

	longName := "this_name_is_definitely_longer_than_eight_characters.txt"
	require.NoError(t, i.AddFile(bytes.NewReader([]byte("rr")), 2, "/BIG.;1", "/"+longName, ""))

	data := master(t, i)
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	require.True(t, reopened.HasRockRidge())

	rec, err := reopened.GetEntry("/BIG.;1")
	require.NoError(t, err)
	require.NotNil(t, rec.RockRidge)
	require.Equal(t, longName, rec.RockRidge.Name())

	// Lookup by the Rock Ridge name works as well.
	rec2, err := reopened.GetEntry("/" + longName)
	require.NoError(t, err)
	require.Equal(t, rec.ExtentLocation(), rec2.ExtentLocation())
}

func TestRockRidgeSymlink(t *testing.T) {
	i, err := New(WithRockRidge(true))
	require.NoError(t, err)
	require.NoError(t, i.AddFile(bytes.NewReader([]byte("t")), 1, "/TARGET.;1", "/target", ""))
	require.NoError(t, i.AddSymlink("/LINK.;1", "link", "target"))

	// An absolute symlink target is rejected.
	require.ErrorIs(t, i.AddSymlink("/LINK2.;1", "link2", "/abs"), ErrInvalidArgument)

	data := master(t, i)
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	rec, err := reopened.GetEntry("/LINK.;1")
	require.NoError(t, err)
	require.NotNil(t, rec.RockRidge)
	require.True(t, rec.RockRidge.IsSymlink())
	target, err := rec.RockRidge.SymlinkPath()
	require.NoError(t, err)
	require.Equal(t, "target", target)

	// Symlinks have no data.
	require.ErrorIs(t, reopened.GetAndWrite("/LINK.;1", io.Discard, 0), ErrInvalidArgument)
}

func TestSymlinkRequiresRockRidge(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.ErrorIs(t, i.AddSymlink("/LINK.;1", "link", "target"), ErrInvalidArgument)
}

func TestElToritoScenario(t *testing.T) {
	i, err := New()
	require.NoError(t, err)

	bootData := make([]byte, 2048)
	copy(bootData[0x40:], []byte{0xfb, 0xc0, 0x78, 0x70})
	require.NoError(t, i.AddFile(bytes.NewReader(bootData), 2048, "/BOOT.;1", "", ""))
	require.NoError(t, i.AddElTorito("/BOOT.;1", "/BOOT.CAT;1", "", "", 0))
	require.True(t, i.HasElTorito())

	data := master(t, i)

	// The boot record sits at extent 17 and names El Torito.
	brOffset := 17 * 2048
	require.Equal(t, byte(0x00), data[brOffset])
	require.Equal(t, "EL TORITO SPECIFICATION", string(data[brOffset+7:brOffset+30]))

	// Its boot system use begins with the catalog extent, little-endian.
	catalogExtent := binary.LittleEndian.Uint32(data[brOffset+71 : brOffset+75])
	require.NotZero(t, catalogExtent)

	// The validation entry at the catalog sums to zero mod 2^16.
	catOffset := int(catalogExtent) * 2048
	var sum uint16
	for off := 0; off < 32; off += 2 {
		sum += binary.LittleEndian.Uint16(data[catOffset+off : catOffset+off+2])
	}
	require.Equal(t, uint16(0), sum)
	require.Equal(t, byte(0x55), data[catOffset+30])
	require.Equal(t, byte(0xaa), data[catOffset+31])

	// The initial entry's load RBA points at the mastered boot file.
	loadRBA := binary.LittleEndian.Uint32(data[catOffset+40 : catOffset+44])
	require.Equal(t, bootData, data[int(loadRBA)*2048:int(loadRBA)*2048+2048])

	// Reopening binds the catalog and boot file records.
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	require.True(t, reopened.HasElTorito())

	// Remove it again; the catalog file disappears.
	require.NoError(t, reopened.RmElTorito())
	require.False(t, reopened.HasElTorito())
	_, err = reopened.GetEntry("/BOOT.CAT;1")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestElToritoRequiresExistingBootFile(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.ErrorIs(t, i.AddElTorito("/MISSING.;1", "/BOOT.CAT;1", "", "", 0), ErrInvalidArgument)
}

func TestIsoHybridScenario(t *testing.T) {
	i, err := New()
	require.NoError(t, err)

	bootData := make([]byte, 2048)
	copy(bootData[0x40:], []byte{0xfb, 0xc0, 0x78, 0x70})
	require.NoError(t, i.AddFile(bytes.NewReader(bootData), 2048, "/BOOT.;1", "", ""))
	require.NoError(t, i.AddElTorito("/BOOT.;1", "/BOOT.CAT;1", "", "", 4))

	bootstrap := make([]byte, 432)
	bootstrap[0] = 0x33
	bootstrap[1] = 0xed
	require.NoError(t, i.AddIsoHybrid(bytes.NewReader(bootstrap), WithMBRID(0x1234)))
	require.True(t, i.HasIsoHybrid())

	data := master(t, i)

	// The MBR leads the image and the cylinder padding rounds it out.
	require.Equal(t, byte(0x33), data[0])
	require.Equal(t, byte(0xed), data[1])
	require.Equal(t, byte(0x55), data[510])
	require.Equal(t, byte(0xaa), data[511])
	cylSize := 64 * 32 * 512
	require.Zero(t, len(data)%cylSize)

	// Reopen detects the hybrid.
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	require.True(t, reopened.HasIsoHybrid())

	require.NoError(t, reopened.RmIsoHybrid())
	require.False(t, reopened.HasIsoHybrid())
}

func TestIsoHybridValidation(t *testing.T) {
	i, err := New()
	require.NoError(t, err)

	bootstrap := make([]byte, 432)
	// No El Torito yet.
	require.ErrorIs(t, i.AddIsoHybrid(bytes.NewReader(bootstrap)), ErrInvalidArgument)
	// Wrong bootstrap size.
	require.ErrorIs(t, i.AddIsoHybrid(bytes.NewReader(make([]byte, 100))), ErrInvalidArgument)

	// Wrong sector count on the initial entry.
	bootData := make([]byte, 2048)
	copy(bootData[0x40:], []byte{0xfb, 0xc0, 0x78, 0x70})
	require.NoError(t, i.AddFile(bytes.NewReader(bootData), 2048, "/BOOT.;1", "", ""))
	require.NoError(t, i.AddElTorito("/BOOT.;1", "/BOOT.CAT;1", "", "", 8))
	require.ErrorIs(t, i.AddIsoHybrid(bytes.NewReader(bootstrap)), ErrInvalidArgument)
}

func TestOpenRoundTripStructure(t *testing.T) {
	i, err := New(WithVolumeIdentifier("ROUND"), WithJoliet(true))
	require.NoError(t, err)
	require.NoError(t, i.AddDirectory("/DIR1", "", "/dir1"))
	require.NoError(t, i.AddFile(bytes.NewReader([]byte("abc")), 3, "/DIR1/A.;1", "", "/dir1/a"))

	first := master(t, i)

	reopened, err := Open(bytes.NewReader(first))
	require.NoError(t, err)
	second := master(t, reopened)

	// The re-mastered image has identical geometry.
	require.Equal(t, len(first), len(second))

	again, err := Open(bytes.NewReader(second))
	require.NoError(t, err)
	require.Equal(t,
		i.PrimaryVolumeDescriptor().SpaceSize,
		again.PrimaryVolumeDescriptor().SpaceSize)

	var out bytes.Buffer
	require.NoError(t, again.GetAndWrite("/DIR1/A.;1", &out, 0))
	require.Equal(t, []byte("abc"), out.Bytes())
}

func TestAllocatorFixedPoint(t *testing.T) {
	i, err := New(WithRockRidge(true))
	require.NoError(t, err)
	require.NoError(t, i.AddDirectory("/DIR1", "/dir1", ""))
	require.NoError(t, i.AddFile(bytes.NewReader([]byte("zz")), 2, "/DIR1/Z.;1", "/dir1/z", ""))

	collect := func() map[string]uint32 {
		out := map[string]uint32{}
		var walk func(rec *directory.Record, prefix string)
		walk = func(rec *directory.Record, prefix string) {
			out[prefix] = rec.ExtentLocation()
			for _, c := range rec.Children {
				if c.IsDot() || c.IsDotDot() {
					continue
				}
				walk(c, prefix+"/"+c.Ident)
			}
		}
		walk(i.PrimaryVolumeDescriptor().RootDirectoryRecord(), "")
		out["ptLE"] = i.PrimaryVolumeDescriptor().PathTableLocationLE
		out["ptBE"] = i.PrimaryVolumeDescriptor().PathTableLocationBE
		return out
	}

	i.reshuffleExtents()
	first := collect()
	i.reshuffleExtents()
	require.Equal(t, first, collect())
}

func TestSortOrderAfterWrite(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	for _, name := range []string{"/ZED.;1", "/ALPHA.;1", "/MID.;1"} {
		require.NoError(t, i.AddFile(bytes.NewReader(nil), 0, name, "", ""))
	}

	data := master(t, i)
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	var idents []string
	for _, c := range reopened.PrimaryVolumeDescriptor().RootDirectoryRecord().Children {
		idents = append(idents, c.Ident)
	}
	require.Equal(t, []string{"\x00", "\x01", "ALPHA.;1", "MID.;1", "ZED.;1"}, idents)
}

func TestPathTableEquivalenceAfterWrite(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.NoError(t, i.AddDirectory("/BBB", "", ""))
	require.NoError(t, i.AddDirectory("/AAA", "", ""))

	data := master(t, i)
	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	pvd := reopened.PrimaryVolumeDescriptor()
	le := data[int(pvd.PathTableLocationLE)*2048 : int(pvd.PathTableLocationLE)*2048+int(pvd.PathTblSize)]
	be := data[int(pvd.PathTableLocationBE)*2048 : int(pvd.PathTableLocationBE)*2048+int(pvd.PathTblSize)]

	// Same records, with the multi-byte fields byte-swapped.
	offset := 0
	count := 0
	for offset < len(le) {
		lenDI := int(le[offset])
		require.Equal(t, le[offset], be[offset])
		require.Equal(t, le[offset+1], be[offset+1])
		require.Equal(t,
			binary.LittleEndian.Uint32(le[offset+2:offset+6]),
			binary.BigEndian.Uint32(be[offset+2:offset+6]))
		require.Equal(t,
			binary.LittleEndian.Uint16(le[offset+6:offset+8]),
			binary.BigEndian.Uint16(be[offset+6:offset+8]))
		recLen := 8 + lenDI + lenDI%2
		require.Equal(t, le[offset+8:offset+recLen], be[offset+8:offset+recLen])
		offset += recLen
		count++
	}
	require.Equal(t, 3, count)
}

func TestOpenToleratesDataLengthMismatch(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.NoError(t, i.AddFile(bytes.NewReader([]byte("abcd")), 4, "/A.;1", "", ""))
	data := master(t, i)

	// Locate the file's directory record in the root extent (directly after
	// dot and dotdot) and corrupt the big-endian data length half.
	rootExtent := int(func() uint32 {
		reopened, err := Open(bytes.NewReader(data))
		require.NoError(t, err)
		return reopened.PrimaryVolumeDescriptor().RootDirectoryRecord().ExtentLocation()
	}())
	recOffset := rootExtent*2048 + 34 + 34
	require.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[recOffset+10:recOffset+14]))
	data[recOffset+14] ^= 0xff

	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	rec, err := reopened.GetEntry("/A.;1")
	require.NoError(t, err)
	require.Equal(t, uint32(4), rec.DataLength)
}

func TestOpenRejectsExtentMismatch(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.NoError(t, i.AddFile(bytes.NewReader([]byte("abcd")), 4, "/A.;1", "", ""))
	data := master(t, i)

	reopened, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	rootExtent := int(reopened.PrimaryVolumeDescriptor().RootDirectoryRecord().ExtentLocation())

	recOffset := rootExtent*2048 + 34 + 34
	data[recOffset+6] ^= 0xff // big-endian extent half
	_, err = Open(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrMalformedImage)
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open(bytes.NewReader(make([]byte, 17*2048)))
	require.ErrorIs(t, err, ErrMalformedImage)
}

func TestListDirAndPrintTree(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.NoError(t, i.AddDirectory("/DIR1", "", ""))
	require.NoError(t, i.AddFile(bytes.NewReader(nil), 0, "/DIR1/A.;1", "", ""))

	seq, err := i.ListDir("/DIR1")
	require.NoError(t, err)
	var names []string
	for rec := range seq {
		names = append(names, rec.FileIdentifier())
	}
	require.Equal(t, []string{".", "..", "A.;1"}, names)

	_, err = i.ListDir("/DIR1/A.;1")
	require.ErrorIs(t, err, ErrInvalidArgument)

	var tree bytes.Buffer
	i.PrintTree(&tree)
	require.Contains(t, tree.String(), "DIR1")
	require.Contains(t, tree.String(), "A.;1")
}

func TestWriteProgress(t *testing.T) {
	i, err := New()
	require.NoError(t, err)
	require.NoError(t, i.AddFile(bytes.NewReader(make([]byte, 5000)), 5000, "/DATA.;1", "", ""))

	var last, total int64
	calls := 0
	master(t, i, WithProgress(func(done, tot int64) {
		require.GreaterOrEqual(t, done, last)
		last, total = done, tot
		calls++
	}))
	require.Greater(t, calls, 1)
	require.Equal(t, total, last)
	require.Equal(t, int64(i.PrimaryVolumeDescriptor().SpaceSize)*2048, total)
}

func TestErrorKinds(t *testing.T) {
	require.False(t, errors.Is(ErrMalformedImage, ErrInvalidArgument))
	err := malformed(errors.New("boom"))
	require.ErrorIs(t, err, ErrMalformedImage)
	require.Contains(t, err.Error(), "boom")
}
