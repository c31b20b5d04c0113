package iso

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/descriptor"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/encoding"
	"github.com/bgrewell/iso-forge/pkg/isohybrid"
	"github.com/bgrewell/iso-forge/pkg/pathtable"
	"github.com/bgrewell/iso-forge/pkg/validation"
)

// maxFileLength is the largest file a single directory record can describe;
// multi-extent files are not produced.
const maxFileLength = int64(1)<<32 - 1

// hierarchy depth limit under the primary descriptor (ECMA-119 6.8.2.1:
// at most eight levels, with the root occupying the first).
const maxPVDDepth = 7

// findRecord locates the directory record at an absolute path within a
// volume. Components match either the ISO identifier or the Rock Ridge
// alternate name. Joliet lookups encode each component big-endian UTF-16.
func (i *Image) findRecord(vd *descriptor.VolumeDescriptor, path string, joliet bool) (*directory.Record, error) {
	if path == "" || path[0] != '/' {
		return nil, invalidArgf("path must start with /")
	}
	if path == "/" {
		return vd.RootDirectoryRecord(), nil
	}

	encode := func(s string) string { return s }
	if joliet {
		encode = func(s string) string { return string(encoding.EncodeUTF16BE(s)) }
	}

	components := strings.Split(path, "/")[1:]
	current := vd.RootDirectoryRecord()
	for depth, component := range components {
		want := encode(component)
		var found *directory.Record
		for _, child := range current.Children {
			if child.IsDot() || child.IsDotDot() {
				continue
			}
			if child.FileIdentifier() == want {
				found = child
				break
			}
			if child.RockRidge != nil && child.RockRidge.Name() == want {
				found = child
				break
			}
		}
		if found == nil {
			return nil, invalidArgf("could not find path %s", path)
		}
		if depth == len(components)-1 {
			return found, nil
		}
		if !found.IsDir {
			return nil, invalidArgf("could not find path %s", path)
		}
		current = found
	}
	return nil, invalidArgf("could not find path %s", path)
}

// nameAndParent splits an absolute path into its final component and the
// directory record of its parent within a volume.
func (i *Image) nameAndParent(vd *descriptor.VolumeDescriptor, path string, joliet bool) (string, *directory.Record, error) {
	if path == "" || path[0] != '/' {
		return "", nil, invalidArgf("path must start with /")
	}
	components := strings.Split(path, "/")[1:]
	if vd.IsPrimary() && len(components) > maxPVDDepth {
		return "", nil, invalidArgf("directory levels too deep (maximum is %d)", maxPVDDepth)
	}
	name := components[len(components)-1]
	parents := components[:len(components)-1]
	if len(parents) == 0 {
		return name, vd.RootDirectoryRecord(), nil
	}
	parent, err := i.findRecord(vd, "/"+strings.Join(parents, "/"), joliet)
	if err != nil {
		return "", nil, err
	}
	return name, parent, nil
}

// checkJolietPath validates the rule that a Joliet path is required exactly
// when the image carries a Joliet hierarchy.
func (i *Image) checkJolietPath(jolietPath string) error {
	if i.jolietVD != nil {
		if jolietPath == "" {
			return invalidArgf("a Joliet path must be passed for a Joliet image")
		}
	} else if jolietPath != "" {
		return invalidArgf("a Joliet path can only be specified for a Joliet image")
	}
	return nil
}

// checkRockRidgeAndJolietPaths validates the rule that extension paths are
// required exactly when the extension is enabled, and splits out the Rock
// Ridge name.
func (i *Image) checkRockRidgeAndJolietPaths(rrPath, jolietPath string) (string, error) {
	rrName := ""
	if i.rockRidge {
		if rrPath == "" {
			return "", invalidArgf("a Rock Ridge path must be passed for a Rock Ridge image")
		}
		split := strings.Split(rrPath, "/")
		rrName = split[len(split)-1]
	} else if rrPath != "" {
		return "", invalidArgf("a Rock Ridge path can only be specified for a Rock Ridge image")
	}

	return rrName, i.checkJolietPath(jolietPath)
}

// findJolietMirror walks the Joliet tree for the record linked to a primary
// record; nil when no mirror is bound.
func (i *Image) findJolietMirror(primary *directory.Record) *directory.Record {
	dirs := []*directory.Record{i.jolietVD.RootDirectoryRecord()}
	for len(dirs) > 0 {
		curr := dirs[0]
		dirs = dirs[1:]
		for _, child := range curr.Children {
			if child.IsDot() || child.IsDotDot() {
				continue
			}
			if child.IsDir {
				dirs = append(dirs, child)
				continue
			}
			if child.PrimaryRecord == primary {
				return child
			}
		}
	}
	return nil
}

// addChild wraps directory insertion, mapping duplicate identifiers to the
// Duplicate error kind.
func addChild(parent, child *directory.Record, vd *descriptor.VolumeDescriptor) error {
	err := parent.AddChild(child, vd, false)
	var dup *directory.ErrDuplicateChild
	if pkgerrors.As(err, &dup) {
		return pkgerrors.WithMessage(ErrDuplicate, err.Error())
	}
	return err
}

// AddFile adds a file to the image, serving its content from the byte
// source during mastering; the source is captured by reference and must
// outlive the image object. A Rock Ridge path is required (and only
// allowed) on a Rock Ridge image, and likewise a Joliet path on a Joliet
// image.
func (i *Image) AddFile(fp io.ReadSeeker, length int64, isoPath, rrPath, jolietPath string) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if length < 0 || length > maxFileLength {
		return invalidArgf("maximum supported file length is 2^32-1")
	}

	rrName, err := i.checkRockRidgeAndJolietPaths(rrPath, jolietPath)
	if err != nil {
		return err
	}

	name, parent, err := i.nameAndParent(i.pvd, isoPath, false)
	if err != nil {
		return err
	}
	if err := validation.CheckFileIdentifier(name, i.interchangeLevel); err != nil {
		return invalidArgf("%s", err)
	}

	rec, err := directory.NewFile(fp, uint32(length), name, parent, i.pvd.SequenceNumber(), i.rockRidge, rrName)
	if err != nil {
		return err
	}
	if err := addChild(parent, rec, i.pvd); err != nil {
		return err
	}
	i.pvd.AddEntry(uint32(length), 0)

	if i.jolietVD != nil {
		jolietName, jolietParent, err := i.nameAndParent(i.jolietVD, jolietPath, true)
		if err != nil {
			return err
		}
		encoded := string(encoding.EncodeUTF16BE(jolietName))
		jolietRec, err := directory.NewFile(fp, uint32(length), encoded, jolietParent, i.jolietVD.SequenceNumber(), false, "")
		if err != nil {
			return err
		}
		if err := addChild(jolietParent, jolietRec, i.jolietVD); err != nil {
			return err
		}
		i.jolietVD.AddEntry(uint32(length), 0)
		// The Joliet record mirrors the primary one's data; the allocator
		// keeps its extent tracking the primary's from here on.
		jolietRec.PrimaryRecord = rec
	}

	i.reshuffleExtents()

	// A fresh continuation area claimed a block of its own; account for it
	// now that reshuffle has fixed the offsets.
	if rec.RockRidge != nil && rec.RockRidge.CE != nil && rec.RockRidge.CE.Continuation.Offset == 0 {
		i.pvd.AddToSpaceSize(uint32(i.pvd.LogicalBlockSize()))
	}

	i.logger.Debug("added file", "isoPath", isoPath, "length", length)
	return nil
}

// AddDirectory adds a directory to the image, with its dot and dotdot
// records, and extends the path tables of the affected descriptors.
func (i *Image) AddDirectory(isoPath, rrPath, jolietPath string) error {
	if !i.initialized {
		return ErrNotInitialized
	}

	rrName, err := i.checkRockRidgeAndJolietPaths(rrPath, jolietPath)
	if err != nil {
		return err
	}

	name, parent, err := i.nameAndParent(i.pvd, isoPath, false)
	if err != nil {
		return err
	}
	if err := validation.CheckDirIdentifier(name, i.interchangeLevel); err != nil {
		return invalidArgf("%s", err)
	}

	blockSize := i.pvd.LogicalBlockSize()
	rec, err := directory.NewDir(name, parent, i.pvd.SequenceNumber(), i.rockRidge, rrName, blockSize)
	if err != nil {
		return err
	}
	if err := addChild(parent, rec, i.pvd); err != nil {
		return err
	}

	dot, err := directory.NewDot(rec, i.pvd.SequenceNumber(), i.rockRidge, blockSize)
	if err != nil {
		return err
	}
	if err := addChild(rec, dot, i.pvd); err != nil {
		return err
	}
	dotdot, err := directory.NewDotDot(rec, i.pvd.SequenceNumber(), i.rockRidge, blockSize)
	if err != nil {
		return err
	}
	if err := addChild(rec, dotdot, i.pvd); err != nil {
		return err
	}

	i.pvd.AddEntry(uint32(blockSize), uint32(pathtable.RecordLength(len(name))))

	parentDirNum, err := i.pvd.FindParentDirNum(parent)
	if err != nil {
		return malformed(err)
	}
	i.pvd.AddPathTableRecord(pathtable.NewDir(name, rec, parentDirNum))

	if i.jolietVD != nil {
		jolietName, jolietParent, err := i.nameAndParent(i.jolietVD, jolietPath, true)
		if err != nil {
			return err
		}
		encoded := string(encoding.EncodeUTF16BE(jolietName))
		jolietBlockSize := i.jolietVD.LogicalBlockSize()

		jolietRec, err := directory.NewDir(encoded, jolietParent, i.jolietVD.SequenceNumber(), false, "", jolietBlockSize)
		if err != nil {
			return err
		}
		if err := addChild(jolietParent, jolietRec, i.jolietVD); err != nil {
			return err
		}
		jolietDot, err := directory.NewDot(jolietRec, i.jolietVD.SequenceNumber(), false, jolietBlockSize)
		if err != nil {
			return err
		}
		if err := addChild(jolietRec, jolietDot, i.jolietVD); err != nil {
			return err
		}
		jolietDotDot, err := directory.NewDotDot(jolietRec, i.jolietVD.SequenceNumber(), false, jolietBlockSize)
		if err != nil {
			return err
		}
		if err := addChild(jolietRec, jolietDotDot, i.jolietVD); err != nil {
			return err
		}

		i.jolietVD.AddEntry(uint32(jolietBlockSize), uint32(pathtable.RecordLength(len(encoded))))

		jolietParentDirNum, err := i.jolietVD.FindParentDirNum(jolietParent)
		if err != nil {
			return malformed(err)
		}
		i.jolietVD.AddPathTableRecord(pathtable.NewDir(encoded, jolietRec, jolietParentDirNum))

		i.pvd.AddToSpaceSize(uint32(blockSize))
		i.jolietVD.AddToSpaceSize(uint32(jolietBlockSize))
	}

	i.reshuffleExtents()

	i.logger.Debug("added directory", "isoPath", isoPath)
	return nil
}

// AddSymlink adds a Rock Ridge symlink pointing at rrTarget, which must be
// a relative path.
func (i *Image) AddSymlink(symlinkPath, rrSymlinkName, rrTarget string) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if !i.rockRidge {
		return invalidArgf("symlinks can only be added to a Rock Ridge image")
	}
	if rrTarget == "" || rrTarget[0] == '/' {
		return invalidArgf("symlink target path must be relative")
	}

	name, parent, err := i.nameAndParent(i.pvd, symlinkPath, false)
	if err != nil {
		return err
	}

	rec, err := directory.NewSymlink(name, parent, rrTarget, i.pvd.SequenceNumber(), rrSymlinkName)
	if err != nil {
		return err
	}
	if err := addChild(parent, rec, i.pvd); err != nil {
		return err
	}

	i.reshuffleExtents()

	i.logger.Debug("added symlink", "symlinkPath", symlinkPath, "target", rrTarget)
	return nil
}

// RmFile removes a file from the image. On a Joliet image the mirror
// record's path must be passed as well so both hierarchies drop the entry.
func (i *Image) RmFile(isoPath, jolietPath string) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if err := i.checkJolietPath(jolietPath); err != nil {
		return err
	}

	child, err := i.findRecord(i.pvd, isoPath, false)
	if err != nil {
		return err
	}
	if !child.IsFile() {
		return invalidArgf("cannot remove a directory with RmFile (try RmDirectory instead)")
	}

	var jolietRec *directory.Record
	if i.jolietVD != nil {
		if jolietRec, err = i.findRecord(i.jolietVD, jolietPath, true); err != nil {
			return err
		}
		if !jolietRec.IsFile() {
			return invalidArgf("the Joliet path does not name a file")
		}
	}

	if err := child.Parent.RemoveChild(child, i.pvd); err != nil {
		return malformed(err)
	}
	i.pvd.RemoveEntry(child.FileLength(), "")
	if jolietRec != nil {
		if err := jolietRec.Parent.RemoveChild(jolietRec, i.jolietVD); err != nil {
			return malformed(err)
		}
		i.jolietVD.RemoveEntry(child.FileLength(), "")
	}

	i.reshuffleExtents()

	i.logger.Debug("removed file", "isoPath", isoPath)
	return nil
}

// RmDirectory removes an empty directory from the image, along with its
// Joliet mirror and both path-table records when the image carries a Joliet
// hierarchy.
func (i *Image) RmDirectory(isoPath, jolietPath string) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if isoPath == "/" {
		return invalidArgf("cannot remove the root directory")
	}
	if err := i.checkJolietPath(jolietPath); err != nil {
		return err
	}

	child, err := i.findRecord(i.pvd, isoPath, false)
	if err != nil {
		return err
	}
	if !child.IsDir {
		return invalidArgf("cannot remove a file with RmDirectory (try RmFile instead)")
	}
	for _, c := range child.Children {
		if c.IsDot() || c.IsDotDot() {
			continue
		}
		return invalidArgf("directory must be empty to use RmDirectory")
	}

	var jolietRec *directory.Record
	if i.jolietVD != nil {
		if jolietRec, err = i.findRecord(i.jolietVD, jolietPath, true); err != nil {
			return err
		}
		if !jolietRec.IsDir {
			return invalidArgf("the Joliet path does not name a directory")
		}
		for _, c := range jolietRec.Children {
			if c.IsDot() || c.IsDotDot() {
				continue
			}
			return invalidArgf("directory must be empty to use RmDirectory")
		}
	}

	if err := child.Parent.RemoveChild(child, i.pvd); err != nil {
		return malformed(err)
	}
	if err := i.pvd.RemoveEntry(child.FileLength(), child.Ident); err != nil {
		return malformed(err)
	}
	if jolietRec != nil {
		if err := jolietRec.Parent.RemoveChild(jolietRec, i.jolietVD); err != nil {
			return malformed(err)
		}
		if err := i.jolietVD.RemoveEntry(jolietRec.FileLength(), jolietRec.Ident); err != nil {
			return malformed(err)
		}
		// Undo the cross-hierarchy block accounting AddDirectory made.
		i.pvd.RemoveFromSpaceSize(uint32(i.pvd.LogicalBlockSize()))
		i.jolietVD.RemoveFromSpaceSize(uint32(i.jolietVD.LogicalBlockSize()))
	}

	i.reshuffleExtents()

	i.logger.Debug("removed directory", "isoPath", isoPath)
	return nil
}

// AddElTorito makes the image bootable: it allocates an El Torito boot
// record, builds the boot catalog, injects the catalog into the directory
// tree as a synthetic file (and its Joliet mirror when present), and binds
// the catalog and boot file records. The boot file must already exist on
// the image.
func (i *Image) AddElTorito(bootFilePath, bootCatPath, rrBootCat, jolietBootCat string, bootLoadSize uint16) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if i.bootCatalog != nil {
		return invalidArgf("image already has an El Torito boot record")
	}

	// Step 1: the boot file record must already exist.
	child, err := i.findRecord(i.pvd, bootFilePath, false)
	if err != nil {
		return err
	}

	blockSize := uint32(i.pvd.LogicalBlockSize())
	sectorCount := bootLoadSize
	if sectorCount == 0 {
		sectorCount = uint16(encoding.CeilingDiv(child.FileLength(), blockSize) * blockSize / 512)
	}

	// Step 2: the boot record.
	br := descriptor.NewBootRecord(consts.EL_TORITO_BOOT_SYSTEM_ID)
	i.brs = append(i.brs, br)

	// Step 3: the catalog, injected into the tree as a synthetic file.
	bc := eltorito.NewBootCatalog(br, sectorCount)
	bc.SetInitialEntryDirRecord(child)
	i.bootCatalog = bc

	catalog := bc.Record()
	length := uint32(len(catalog))
	fp := bytes.NewReader(catalog)

	name, parent, err := i.nameAndParent(i.pvd, bootCatPath, false)
	if err != nil {
		return err
	}
	if err := validation.CheckFileIdentifier(name, i.interchangeLevel); err != nil {
		return invalidArgf("%s", err)
	}

	bootCatRec, err := directory.NewFile(fp, length, name, parent, i.pvd.SequenceNumber(), i.rockRidge, rrBootCat)
	if err != nil {
		return err
	}
	if err := addChild(parent, bootCatRec, i.pvd); err != nil {
		return err
	}
	i.pvd.AddEntry(length, 0)
	if bootCatRec.RockRidge != nil && bootCatRec.RockRidge.CE != nil {
		i.pvd.AddToSpaceSize(blockSize)
	}
	bc.SetDirRecord(bootCatRec)

	if i.jolietVD != nil {
		jolietName, jolietParent, err := i.nameAndParent(i.jolietVD, jolietBootCat, true)
		if err != nil {
			return err
		}
		encoded := string(encoding.EncodeUTF16BE(jolietName))
		jolietRec, err := directory.NewFile(fp, length, encoded, jolietParent, i.jolietVD.SequenceNumber(), false, "")
		if err != nil {
			return err
		}
		if err := addChild(jolietParent, jolietRec, i.jolietVD); err != nil {
			return err
		}
		i.jolietVD.AddEntry(length, 0)
		i.jolietVD.AddToSpaceSize(uint32(i.jolietVD.LogicalBlockSize()))
		// The mirror follows the catalog's extent through every reshuffle.
		jolietRec.PrimaryRecord = bootCatRec
	}

	// Step 4: one block for the boot record itself.
	i.pvd.AddToSpaceSize(blockSize)
	i.reshuffleExtents()

	i.logger.Debug("added El Torito boot record", "bootFile", bootFilePath, "sectorCount", sectorCount)
	return nil
}

// RmElTorito removes the El Torito boot record and the catalog file.
func (i *Image) RmElTorito() error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if i.bootCatalog == nil {
		return invalidArgf("image does not have an El Torito boot record")
	}

	elToritoIndex := -1
	for idx, br := range i.brs {
		if br.IsElTorito() {
			elToritoIndex = idx
			break
		}
	}
	if elToritoIndex == -1 {
		return malformed(fmt.Errorf("El Torito boot catalog found with no corresponding boot record"))
	}
	catalogExtent := i.bootCatalog.ExtentLocation()

	i.brs = append(i.brs[:elToritoIndex], i.brs[elToritoIndex+1:]...)
	i.bootCatalog = nil

	blockSize := uint32(i.pvd.LogicalBlockSize())
	i.pvd.RemoveFromSpaceSize(blockSize)
	if i.jolietVD != nil {
		i.jolietVD.RemoveFromSpaceSize(uint32(i.jolietVD.LogicalBlockSize()))
	}

	// Find and drop the catalog's synthetic file by its extent.
	dirs := []*directory.Record{i.pvd.RootDirectoryRecord()}
	for len(dirs) > 0 {
		curr := dirs[0]
		dirs = dirs[1:]
		for _, child := range curr.Children {
			if child.IsDot() || child.IsDotDot() {
				continue
			}
			if child.IsDir {
				dirs = append(dirs, child)
				continue
			}
			if child.ExtentLocation() == catalogExtent {
				if err := curr.RemoveChild(child, i.pvd); err != nil {
					return malformed(err)
				}
				i.pvd.RemoveEntry(child.FileLength(), "")
				if i.jolietVD != nil {
					if mirror := i.findJolietMirror(child); mirror != nil {
						if err := mirror.Parent.RemoveChild(mirror, i.jolietVD); err != nil {
							return malformed(err)
						}
					}
					i.jolietVD.RemoveEntry(child.FileLength(), "")
				}
				i.reshuffleExtents()
				i.logger.Debug("removed El Torito boot record")
				return nil
			}
		}
	}

	return malformed(fmt.Errorf("could not find the boot catalog file to remove"))
}

// isolinuxBootSignature is expected at offset 0x40 of the boot file when
// adding hybrid support.
var isolinuxBootSignature = []byte{0xfb, 0xc0, 0x78, 0x70}

// AddIsoHybrid wraps the image in an MBR so the same bytes boot from block
// devices. The bootstrap source must hold exactly 432 bytes (an isolinux
// isohdpfx blob), and the image must carry an El Torito boot with a
// four-sector initial entry whose boot file bears the isolinux signature.
func (i *Image) AddIsoHybrid(fp io.ReadSeeker, opts ...HybridOption) error {
	if !i.initialized {
		return ErrNotInitialized
	}

	options := defaultHybridOptions()
	for _, opt := range opts {
		opt(&options)
	}

	size, err := fp.Seek(0, io.SeekEnd)
	if err != nil {
		return invalidArgf("%s", err)
	}
	if size != isohybrid.BootstrapSize {
		return invalidArgf("the isohybrid bootstrap must be exactly %d bytes", isohybrid.BootstrapSize)
	}

	if i.bootCatalog == nil {
		return invalidArgf("the image must have an El Torito boot record to add isohybrid support")
	}
	if i.bootCatalog.Initial.SectorCount != 4 {
		return invalidArgf("El Torito boot catalog sector count must be 4 (was 0x%x)", i.bootCatalog.Initial.SectorCount)
	}

	bootFile := i.bootCatalog.InitialEntryDirRecord
	if bootFile == nil {
		return malformed(fmt.Errorf("El Torito initial entry has no bound boot file"))
	}
	data, length, err := bootFile.OpenData(i.pvd.LogicalBlockSize())
	if err != nil {
		return malformed(err)
	}
	if length < 0x44 {
		return invalidArgf("boot file too short for an isolinux signature")
	}
	if _, err := data.Seek(0x40, io.SeekCurrent); err != nil {
		return malformed(err)
	}
	signature := make([]byte, 4)
	if _, err := io.ReadFull(data, signature); err != nil {
		return malformed(err)
	}
	if !bytes.Equal(signature, isolinuxBootSignature) {
		return invalidArgf("invalid signature on boot file for isohybrid")
	}

	if _, err := fp.Seek(0, io.SeekStart); err != nil {
		return invalidArgf("%s", err)
	}
	bootstrap := make([]byte, isohybrid.BootstrapSize)
	if _, err := io.ReadFull(fp, bootstrap); err != nil {
		return invalidArgf("%s", err)
	}

	i.hybridMBR, err = isohybrid.New(bootstrap, i.bootCatalog.Initial.LoadRBA,
		options.PartEntry, options.MBRID, options.PartOffset,
		options.GeometrySectors, options.GeometryHeads, options.PartType)
	if err != nil {
		return invalidArgf("%s", err)
	}

	i.logger.Debug("added isohybrid MBR", "mbrID", i.hybridMBR.MBRID)
	return nil
}

// RmIsoHybrid removes the hybridization, making this a traditional image
// again.
func (i *Image) RmIsoHybrid() error {
	if !i.initialized {
		return ErrNotInitialized
	}
	i.hybridMBR = nil
	return nil
}
