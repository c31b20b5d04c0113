package directory

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeVolume satisfies Volume for bookkeeping tests.
type fakeVolume struct {
	blockSize uint16
	spaceSize uint32
}

func (v *fakeVolume) LogicalBlockSize() uint16 { return v.blockSize }
func (v *fakeVolume) AddToSpaceSize(b uint32) {
	v.spaceSize += (b + uint32(v.blockSize) - 1) / uint32(v.blockSize)
}
func (v *fakeVolume) RemoveFromSpaceSize(b uint32) {
	v.spaceSize -= (b + uint32(v.blockSize) - 1) / uint32(v.blockSize)
}

func newTestTree(t *testing.T, rockRidge bool) (*Record, *fakeVolume) {
	t.Helper()
	vd := &fakeVolume{blockSize: 2048, spaceSize: 24}

	root, err := NewRoot(1, 2048)
	require.NoError(t, err)

	dot, err := NewDot(root, 1, rockRidge, 2048)
	require.NoError(t, err)
	require.NoError(t, root.AddChild(dot, vd, false))

	dotdot, err := NewDotDot(root, 1, rockRidge, 2048)
	require.NoError(t, err)
	require.NoError(t, root.AddChild(dotdot, vd, false))

	return root, vd
}

func TestIdentLess(t *testing.T) {
	require.True(t, identLess("\x00", "\x01"))
	require.True(t, identLess("\x00", "AAA"))
	require.True(t, identLess("\x01", "AAA"))
	require.False(t, identLess("\x01", "\x00"))
	require.False(t, identLess("AAA", "\x01"))
	require.True(t, identLess("AAA", "BBB"))
	require.False(t, identLess("\x00", "\x00"))
}

func TestNewRootAndSpecials(t *testing.T) {
	root, _ := newTestTree(t, false)
	require.True(t, root.IsRoot)
	require.True(t, root.IsDir)
	require.Equal(t, "\x00", root.Ident)
	require.Equal(t, "/", root.FileIdentifier())

	require.Len(t, root.Children, 2)
	require.True(t, root.Children[0].IsDot())
	require.True(t, root.Children[1].IsDotDot())
	require.Equal(t, ".", root.Children[0].FileIdentifier())
	require.Equal(t, "..", root.Children[1].FileIdentifier())

	// A root record is exactly 34 bytes.
	require.Equal(t, 34, root.RecordLength())
}

func TestChildOrdering(t *testing.T) {
	root, vd := newTestTree(t, false)

	for _, name := range []string{"ZZZ", "AAA", "MMM"} {
		dir, err := NewDir(name, root, 1, false, "", 2048)
		require.NoError(t, err)
		require.NoError(t, root.AddChild(dir, vd, false))
	}

	var idents []string
	for _, c := range root.Children {
		idents = append(idents, c.Ident)
	}
	require.Equal(t, []string{"\x00", "\x01", "AAA", "MMM", "ZZZ"}, idents)
}

func TestAddChildDuplicate(t *testing.T) {
	root, vd := newTestTree(t, false)

	a, err := NewFile(nil, 0, "FOO.;1", root, 1, false, "")
	require.NoError(t, err)
	require.NoError(t, root.AddChild(a, vd, false))

	b, err := NewFile(nil, 0, "FOO.;1", root, 1, false, "")
	require.NoError(t, err)
	err = root.AddChild(b, vd, false)
	var dup *ErrDuplicateChild
	require.ErrorAs(t, err, &dup)

	// Two associated files may share a name.
	c, err := NewFile(nil, 0, "BAR.;1", root, 1, false, "")
	require.NoError(t, err)
	require.NoError(t, root.AddChild(c, vd, false))
	d, err := NewFile(nil, 0, "BAR.;1", root, 1, false, "")
	require.NoError(t, err)
	d.FileFlags |= FileFlagAssociated
	c.FileFlags |= FileFlagAssociated
	require.NoError(t, root.AddChild(d, vd, false))
}

func TestAddChildOverflowGrowsBlock(t *testing.T) {
	root, vd := newTestTree(t, false)
	require.Equal(t, uint32(2048), root.DataLength)
	before := vd.spaceSize

	// Push enough children in to overflow one logical block.
	names := 0
	for root.CurrLength <= int(root.DataLength)-40 {
		names++
		name := []byte{'A', 'A', byte('A' + names/26), byte('A' + names%26)}
		f, err := NewFile(nil, 0, string(name)+".;1", root, 1, false, "")
		require.NoError(t, err)
		require.NoError(t, root.AddChild(f, vd, false))
	}
	f, err := NewFile(nil, 0, "LAST.;1", root, 1, false, "")
	require.NoError(t, err)
	require.NoError(t, root.AddChild(f, vd, false))

	require.Equal(t, uint32(4096), root.DataLength)
	require.Equal(t, before+1, vd.spaceSize)

	// Parsing the same overflow is fatal.
	root2, vd2 := newTestTree(t, false)
	root2.CurrLength = int(root2.DataLength)
	g, err := NewFile(nil, 0, "OVER.;1", root2, 1, false, "")
	require.NoError(t, err)
	err = root2.AddChild(g, vd2, true)
	var overflow *ErrDirectoryOverflow
	require.ErrorAs(t, err, &overflow)
}

func TestRemoveChildShrinks(t *testing.T) {
	root, vd := newTestTree(t, false)

	var added []*Record
	for root.DataLength == 2048 {
		name := string([]byte{'F', byte('A' + len(added)/26), byte('A' + len(added)%26)})
		f, err := NewFile(nil, 0, name+".;1", root, 1, false, "")
		require.NoError(t, err)
		require.NoError(t, root.AddChild(f, vd, false))
		added = append(added, f)
	}
	require.Equal(t, uint32(4096), root.DataLength)

	// Remove children until a whole block frees up again.
	for i := len(added) - 1; i >= 0 && root.DataLength == 4096; i-- {
		require.NoError(t, root.RemoveChild(added[i], vd))
	}
	require.Equal(t, uint32(2048), root.DataLength)
}

func TestRockRidgeNlink(t *testing.T) {
	root, vd := newTestTree(t, true)

	// A fresh Rock Ridge root: dot holds 2 links after dotdot is created.
	require.Equal(t, uint32(2), root.Children[0].RockRidge.FileLinks())

	dir, err := NewDir("DIR1", root, 1, true, "dir1", 2048)
	require.NoError(t, err)
	require.NoError(t, root.AddChild(dir, vd, false))
	dot, err := NewDot(dir, 1, true, 2048)
	require.NoError(t, err)
	require.NoError(t, dir.AddChild(dot, vd, false))
	dotdot, err := NewDotDot(dir, 1, true, 2048)
	require.NoError(t, err)
	require.NoError(t, dir.AddChild(dotdot, vd, false))

	// Root's dot and dotdot each gained a link from the new directory.
	require.Equal(t, uint32(3), root.Children[0].RockRidge.FileLinks())
	require.Equal(t, uint32(3), root.Children[1].RockRidge.FileLinks())
	// The new directory's dot: nlink(D/.) == 2 + number of child dirs of D.
	require.Equal(t, uint32(2), dir.Children[0].RockRidge.FileLinks())

	// Removal restores the counts.
	require.NoError(t, root.RemoveChild(dir, vd))
	require.Equal(t, uint32(2), root.Children[0].RockRidge.FileLinks())
	require.Equal(t, uint32(2), root.Children[1].RockRidge.FileLinks())
}

func TestMarshalParseRoundTrip(t *testing.T) {
	root, vd := newTestTree(t, false)

	f, err := NewFile(nil, 1234, "HELLO.TXT;1", root, 1, false, "")
	require.NoError(t, err)
	require.NoError(t, root.AddChild(f, vd, false))
	f.SetExtentLocation(30)

	data := f.Marshal()
	require.Equal(t, int(f.DRLen), len(data))

	parsed, err := ParseRecord(data, nil, root)
	require.NoError(t, err)
	require.Equal(t, "HELLO.TXT;1", parsed.Ident)
	require.Equal(t, uint32(1234), parsed.DataLength)
	require.Equal(t, uint32(30), parsed.ExtentLocation())
	require.False(t, parsed.IsDir)
}

func TestParseRejectsExtentMismatch(t *testing.T) {
	root, vd := newTestTree(t, false)
	f, err := NewFile(nil, 10, "A.;1", root, 1, false, "")
	require.NoError(t, err)
	require.NoError(t, root.AddChild(f, vd, false))
	data := f.Marshal()

	// Corrupt the big-endian extent half.
	data[6] ^= 0xff
	_, err = ParseRecord(data, nil, root)
	require.Error(t, err)
}

func TestParseToleratesDataLengthMismatch(t *testing.T) {
	root, vd := newTestTree(t, false)
	f, err := NewFile(nil, 512, "A.;1", root, 1, false, "")
	require.NoError(t, err)
	require.NoError(t, root.AddChild(f, vd, false))
	data := f.Marshal()

	// Disagreeing data-length halves: the little-endian value wins.
	copy(data[14:18], []byte{0, 0, 0, 1})
	parsed, err := ParseRecord(data, nil, root)
	require.NoError(t, err)
	require.Equal(t, uint32(512), parsed.DataLength)
}

func TestParseRockRidgeRecord(t *testing.T) {
	root, vd := newTestTree(t, true)

	f, err := NewFile(nil, 5, "BIG.;1", root, 1, true, "a_long_posix_name.txt")
	require.NoError(t, err)
	require.NoError(t, root.AddChild(f, vd, false))

	parsed, err := ParseRecord(f.Marshal(), nil, root)
	require.NoError(t, err)
	require.NotNil(t, parsed.RockRidge)
	require.Equal(t, "a_long_posix_name.txt", parsed.RockRidge.Name())
}

func TestOpenData(t *testing.T) {
	root, vd := newTestTree(t, false)
	content := bytes.NewReader([]byte("hello world"))
	f, err := NewFile(content, 11, "HELLO.TXT;1", root, 1, false, "")
	require.NoError(t, err)
	require.NoError(t, root.AddChild(f, vd, false))

	// Consume some of the source, then verify OpenData rewinds it.
	buf := make([]byte, 5)
	_, _ = content.Read(buf)

	src, length, err := f.OpenData(2048)
	require.NoError(t, err)
	require.Equal(t, uint32(11), length)
	out := make([]byte, length)
	_, err = src.Read(out)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(out))

	_, _, err = root.OpenData(2048)
	require.Error(t, err)
}
