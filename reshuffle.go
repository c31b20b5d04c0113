package iso

import (
	"encoding/binary"

	"github.com/bgrewell/iso-forge/pkg/descriptor"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/encoding"
)

// reassignVDExtents walks one volume's directory tree breadth-first,
// assigning extents to directory blocks and packing Rock Ridge continuation
// areas, and returns the next free extent. Dot copies its parent's extent
// and dotdot its grandparent's (or the parent's own, directly under the
// root).
func (i *Image) reassignVDExtents(vd *descriptor.VolumeDescriptor, currentExtent uint32) uint32 {
	blockSize := uint32(vd.LogicalBlockSize())

	root := vd.RootDirectoryRecord()
	root.SetExtentLocation(currentExtent)
	currentExtent += encoding.CeilingDiv(root.DataLength, blockSize)

	var rrContExtent uint32
	var rrContOffset uint32
	haveContExtent := false

	dirs := []*directory.Record{root}
	for len(dirs) > 0 {
		dirRecord := dirs[0]
		dirs = dirs[1:]
		for _, child := range dirRecord.Children {
			switch {
			case child.IsDir && child.IsDot():
				child.SetExtentLocation(child.Parent.ExtentLocation())
			case child.IsDir && child.IsDotDot():
				if child.Parent.IsRoot {
					// The root's dotdot shares the root's own extent.
					child.SetExtentLocation(child.Parent.ExtentLocation())
				} else {
					child.SetExtentLocation(child.Parent.Parent.ExtentLocation())
				}
			default:
				if child.IsDir {
					child.SetExtentLocation(currentExtent)
					currentExtent += encoding.CeilingDiv(child.DataLength, blockSize)
					dirs = append(dirs, child)
				}
				if child.RockRidge != nil && child.RockRidge.CE != nil {
					cont := child.RockRidge.CE.Continuation
					contLen := cont.Length
					if !haveContExtent || blockSize-rrContOffset < contLen {
						// The running block is out of room; open a new one.
						cont.SetExtentLocation(currentExtent)
						cont.Offset = 0
						rrContExtent = currentExtent
						rrContOffset = contLen
						haveContExtent = true
						currentExtent++
					} else {
						cont.SetExtentLocation(rrContExtent)
						cont.Offset = rrContOffset
						rrContOffset += contLen
					}
				}
			}
		}
	}

	vd.UpdatePTRExtentLocations()

	return currentExtent
}

// reshuffleExtents re-computes every extent in the image in a single,
// strictly ordered pass: descriptors, path tables, directory trees, the
// Rock Ridge ER block, the El Torito catalog and boot file, then file
// bodies. It runs after every mutation so that all cross-references stay
// mutually consistent. Original extent locations are untouched; deferred
// reads of original content keep using them.
func (i *Image) reshuffleExtents() {
	currentExtent := i.pvd.ExtentLocation() + 1

	for _, br := range i.brs {
		br.SetExtentLocation(currentExtent)
		currentExtent++
	}
	for _, svd := range i.svds {
		svd.SetExtentLocation(currentExtent)
		currentExtent++
	}
	for _, vdst := range i.vdsts {
		vdst.SetExtentLocation(currentExtent)
		currentExtent++
	}
	i.versionVD.SetExtentLocation(currentExtent)
	currentExtent++

	i.pvd.PathTableLocationLE = currentExtent
	currentExtent += i.pvd.PathTableNumExtents
	i.pvd.PathTableLocationBE = currentExtent
	currentExtent += i.pvd.PathTableNumExtents

	for _, svd := range i.svds {
		svd.PathTableLocationLE = currentExtent
		currentExtent += svd.PathTableNumExtents
		svd.PathTableLocationBE = currentExtent
		currentExtent += svd.PathTableNumExtents
	}

	currentExtent = i.reassignVDExtents(i.pvd, currentExtent)
	for _, svd := range i.svds {
		currentExtent = i.reassignVDExtents(svd, currentExtent)
	}

	// The Rock Ridge ER block sits after all directory entries but before
	// any file content.
	if i.rockRidge {
		rootDot := i.pvd.RootDirectoryRecord().Children[0]
		if rootDot.RockRidge != nil && rootDot.RockRidge.CE != nil {
			rootDot.RockRidge.CE.Continuation.SetExtentLocation(currentExtent)
			currentExtent++
		}
	}

	if i.bootCatalog != nil {
		var use [4]byte
		binary.LittleEndian.PutUint32(use[:], currentExtent)
		i.bootCatalog.BR.UpdateBootSystemUse(use[:])
		i.bootCatalog.DirRecord.SetExtentLocation(currentExtent)
		currentExtent++

		i.bootCatalog.InitialEntryDirRecord.SetExtentLocation(currentExtent)
		i.bootCatalog.UpdateInitialEntryLocation(currentExtent)
		currentExtent++
	}

	// Finally, file bodies, in directory-walk order. The catalog and the
	// boot file were placed above.
	blockSize := uint32(i.pvd.LogicalBlockSize())
	dirs := []*directory.Record{i.pvd.RootDirectoryRecord()}
	for len(dirs) > 0 {
		dirRecord := dirs[0]
		dirs = dirs[1:]
		for _, child := range dirRecord.Children {
			if child.IsDir {
				if !child.IsDot() && !child.IsDotDot() {
					dirs = append(dirs, child)
				}
				continue
			}
			if i.bootCatalog != nil &&
				(i.bootCatalog.DirRecord == child || i.bootCatalog.InitialEntryDirRecord == child) {
				continue
			}
			child.SetExtentLocation(currentExtent)
			currentExtent += encoding.CeilingDiv(child.DataLength, blockSize)
		}
	}

	// Supplementary file records mirror primary data; refresh their extents
	// now that every primary body (and the boot machinery) has a home.
	for _, svd := range i.svds {
		dirs = []*directory.Record{svd.RootDirectoryRecord()}
		for len(dirs) > 0 {
			dirRecord := dirs[0]
			dirs = dirs[1:]
			for _, child := range dirRecord.Children {
				if child.IsDir {
					if !child.IsDot() && !child.IsDotDot() {
						dirs = append(dirs, child)
					}
					continue
				}
				if child.PrimaryRecord != nil {
					child.SetExtentLocation(child.PrimaryRecord.ExtentLocation())
				}
			}
		}
	}

	// The path table records were refreshed per volume inside the tree
	// walks above.
}
