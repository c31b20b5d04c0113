package iso

import (
	"fmt"
	"io"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/descriptor"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/isohybrid"
	"github.com/bgrewell/iso-forge/pkg/logging"
	"github.com/bgrewell/iso-forge/pkg/pathtable"
	"github.com/bgrewell/iso-forge/pkg/validation"
)

// readAt reads exactly count bytes at the given byte offset of the source.
func (i *Image) readAt(offset int64, count int) ([]byte, error) {
	if _, err := i.source.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(i.source, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// open parses an image from its byte source.
func (i *Image) open(r io.ReadSeeker, opts ...Option) error {
	if i.initialized {
		return ErrAlreadyInitialized
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	i.logger = logging.Wrap(options.Logger)
	i.source = r

	if err := i.parseVolumeDescriptors(); err != nil {
		return err
	}

	// Phase 2: an isolinux hybrid MBR announces itself in the first 512
	// bytes of the system area.
	mbr, err := i.readAt(0, isohybrid.MBRSize)
	if err != nil {
		return malformed(err)
	}
	if string(mbr[:2]) == consts.ISOHYBRID_MBR_MAGIC {
		i.logger.Debug("detected isohybrid MBR")
		if i.hybridMBR, err = isohybrid.Parse(mbr); err != nil {
			return malformed(err)
		}
	}

	// Phase 3: boot catalogs for any El Torito boot records.
	for _, br := range i.brs {
		if err := i.checkAndParseElTorito(br); err != nil {
			return err
		}
	}

	i.versionVD = descriptor.ParseVersionDescriptor(i.vdsts[0].ExtentLocation() + 1)

	// Phase 4: both endiannesses of the path table, compared entry-wise.
	if err := i.parseVolumePathTables(i.pvd); err != nil {
		return err
	}

	// Phase 5: the directory walk, which also infers the interchange level.
	level, err := i.walkDirectories(i.pvd, true)
	if err != nil {
		return err
	}
	i.interchangeLevel = level

	// Phase 6: the Joliet hierarchy, at most one.
	for _, svd := range i.svds {
		if !svd.Joliet {
			continue
		}
		if i.jolietVD != nil {
			return unsupportedf("only a single Joliet supplementary volume descriptor is supported")
		}
		i.jolietVD = svd
		if err := i.parseVolumePathTables(svd); err != nil {
			return err
		}
		if _, err := i.walkDirectories(svd, false); err != nil {
			return err
		}
		i.linkJolietMirrors(svd)
	}

	i.initialized = true
	i.logger.Debug("finished parsing image", "interchangeLevel", i.interchangeLevel, "rockRidge", i.rockRidge)
	return nil
}

// linkJolietMirrors binds each Joliet file record to the primary record
// serving the same extent, so the allocator can keep the pair consistent
// across later mutations. Zero-length files all share the next unclaimed
// extent; whichever primary wins the map is fine, as no data is at stake.
func (i *Image) linkJolietMirrors(svd *descriptor.VolumeDescriptor) {
	primaries := make(map[uint32]*directory.Record)
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
			primaries[child.ExtentLocation()] = child
		}
	}

	dirs = []*directory.Record{svd.RootDirectoryRecord()}
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
			if primary, ok := primaries[child.ExtentLocation()]; ok {
				child.PrimaryRecord = primary
			}
		}
	}
}

// parseVolumeDescriptors scans 2048-byte frames from logical sector 16,
// dispatching on the descriptor type, until the first set terminator.
func (i *Image) parseVolumeDescriptors() error {
	var pvds []*descriptor.VolumeDescriptor

	offset := int64(consts.ISO9660_SYSTEM_AREA_SECTORS) * consts.ISO9660_SECTOR_SIZE
	for done := false; !done; offset += consts.ISO9660_SECTOR_SIZE {
		if _, err := i.source.Seek(offset, io.SeekStart); err != nil {
			return malformed(err)
		}
		frame := make([]byte, consts.ISO9660_SECTOR_SIZE)
		if _, err := io.ReadFull(i.source, frame); err != nil {
			return malformed(fmt.Errorf("reading volume descriptor at offset %d: %w", offset, err))
		}
		extent := uint32(offset / consts.ISO9660_SECTOR_SIZE)

		switch descriptor.VolumeDescriptorType(frame[0]) {
		case descriptor.TYPE_PRIMARY_DESCRIPTOR:
			i.logger.Debug("parsing primary volume descriptor", "extent", extent)
			pvd, err := descriptor.ParsePrimary(frame, i.source)
			if err != nil {
				return malformed(err)
			}
			pvds = append(pvds, pvd)
		case descriptor.TYPE_SUPPLEMENTARY_DESCRIPTOR:
			i.logger.Debug("parsing supplementary volume descriptor", "extent", extent)
			svd, err := descriptor.ParseSupplementary(frame, i.source, extent)
			if err != nil {
				return malformed(err)
			}
			i.svds = append(i.svds, svd)
		case descriptor.TYPE_BOOT_RECORD:
			i.logger.Debug("parsing boot record", "extent", extent)
			br, err := descriptor.ParseBootRecord(frame, extent)
			if err != nil {
				return malformed(err)
			}
			i.brs = append(i.brs, br)
		case descriptor.TYPE_PARTITION_DESCRIPTOR:
			return unsupportedf("volume partition descriptors are not supported")
		case descriptor.TYPE_TERMINATOR_DESCRIPTOR:
			vdst, err := descriptor.ParseSetTerminator(frame, extent)
			if err != nil {
				return malformed(err)
			}
			i.vdsts = append(i.vdsts, vdst)
			// The standard permits multiple terminators, but there is no way
			// to tell where the set would end; stop at the first.
			done = true
		default:
			return malformed(fmt.Errorf("invalid volume descriptor type %d", frame[0]))
		}
	}

	if len(pvds) != 1 {
		return malformed(fmt.Errorf("valid ISO9660 filesystems have one and only one primary volume descriptor"))
	}
	if len(i.vdsts) < 1 {
		return malformed(fmt.Errorf("valid ISO9660 filesystems have at least one volume descriptor set terminator"))
	}
	i.pvd = pvds[0]
	return nil
}

// checkAndParseElTorito parses the boot catalog referenced by an El Torito
// boot record.
func (i *Image) checkAndParseElTorito(br *descriptor.BootRecord) error {
	if !br.IsElTorito() {
		return nil
	}
	if i.bootCatalog != nil {
		return malformed(fmt.Errorf("only one El Torito boot record is allowed"))
	}
	// El Torito specification, section 2.0: the boot record lives at
	// extent 17.
	if br.ExtentLocation() != consts.EL_TORITO_BOOT_RECORD_EXTENT {
		return malformed(fmt.Errorf("El Torito boot record must be at extent %d", consts.EL_TORITO_BOOT_RECORD_EXTENT))
	}

	bc := eltorito.NewBootCatalogForParsing(br)
	offset := int64(bc.ExtentLocation()) * int64(i.pvd.LogicalBlockSize())
	for {
		slot, err := i.readAt(offset, eltorito.EntrySize)
		if err != nil {
			return malformed(err)
		}
		done, err := bc.ParseSlot(slot)
		if err != nil {
			return malformed(err)
		}
		if done {
			break
		}
		offset += eltorito.EntrySize
	}
	i.bootCatalog = bc
	return nil
}

// parseVolumePathTables parses the little-endian path table into the volume
// descriptor, then the big-endian table into a scratch list, and diffs the
// two.
func (i *Image) parseVolumePathTables(vd *descriptor.VolumeDescriptor) error {
	if err := i.parsePathTable(vd, vd.PathTableLocationLE, true); err != nil {
		return err
	}

	var beRecords []*pathtable.Record
	collectBE := func(ptr *pathtable.Record) {
		idx := 0
		for idx < len(beRecords) && beRecords[idx].Less(ptr) {
			idx++
		}
		beRecords = append(beRecords, nil)
		copy(beRecords[idx+1:], beRecords[idx:])
		beRecords[idx] = ptr
	}
	if err := i.parsePathTableInto(vd, vd.PathTableLocationBE, false, collectBE); err != nil {
		return err
	}

	if len(beRecords) != len(vd.PathTableRecords) {
		return malformed(fmt.Errorf("little-endian and big-endian path tables have different record counts"))
	}
	for idx, be := range beRecords {
		if !be.EqualToLittleEndian(vd.PathTableRecords[idx]) {
			return malformed(fmt.Errorf("little-endian and big-endian path table records do not agree"))
		}
	}
	return nil
}

// parsePathTable parses one endianness of a path table directly into the
// volume descriptor.
func (i *Image) parsePathTable(vd *descriptor.VolumeDescriptor, extent uint32, littleEndian bool) error {
	return i.parsePathTableInto(vd, extent, littleEndian, vd.AddPathTableRecord)
}

// parsePathTableInto parses one endianness of a path table, handing each
// record to the callback.
func (i *Image) parsePathTableInto(vd *descriptor.VolumeDescriptor, extent uint32, littleEndian bool, callback func(*pathtable.Record)) error {
	offset := int64(extent) * int64(vd.LogicalBlockSize())
	left := int(vd.PathTableSize())
	for left > 0 {
		lenDI, err := i.readAt(offset, 1)
		if err != nil {
			return malformed(err)
		}
		readLen := pathtable.RecordLength(int(lenDI[0]))
		data, err := i.readAt(offset, readLen)
		if err != nil {
			return malformed(err)
		}
		ptr, err := pathtable.ParseRecord(data, littleEndian)
		if err != nil {
			return malformed(err)
		}
		callback(ptr)
		offset += int64(readLen)
		left -= readLen
	}
	return nil
}

// walkDirectories walks a volume's directory records breadth-first from the
// root, building the in-memory tree. It returns the inferred interchange
// level when asked to check identifiers.
func (i *Image) walkDirectories(vd *descriptor.VolumeDescriptor, checkInterchange bool) (int, error) {
	if err := vd.SetPTRDirRecord(vd.RootDirectoryRecord()); err != nil {
		return 0, malformed(err)
	}

	interchangeLevel := 1
	blockSize := int64(vd.LogicalBlockSize())
	dirs := []*directory.Record{vd.RootDirectoryRecord()}

	for len(dirs) > 0 {
		dirRecord := dirs[0]
		dirs = dirs[1:]

		offset := int64(dirRecord.ExtentLocation()) * blockSize
		length := int64(dirRecord.FileLength())
		for length > 0 {
			lenByte, err := i.readAt(offset, 1)
			if err != nil {
				return 0, malformed(err)
			}
			offset++
			length--
			if lenByte[0] == 0 {
				// A zero length byte is padding; skip to the start of the
				// next logical block. The skipped bytes must be all zeros.
				if length > 0 {
					padSize := blockSize - (offset % blockSize)
					pad, err := i.readAt(offset, int(padSize))
					if err != nil {
						return 0, malformed(err)
					}
					for _, b := range pad {
						if b != 0 {
							return 0, malformed(fmt.Errorf("invalid padding in directory extent"))
						}
					}
					offset += padSize
					length -= padSize
					if length < 0 {
						return 0, malformed(fmt.Errorf("directory padding overruns the extent"))
					}
				}
				continue
			}

			body, err := i.readAt(offset, int(lenByte[0])-1)
			if err != nil {
				return 0, malformed(err)
			}
			record := append([]byte{lenByte[0]}, body...)
			offset += int64(lenByte[0]) - 1
			length -= int64(lenByte[0]) - 1

			newRecord, err := directory.ParseRecord(record, i.source, dirRecord)
			if err != nil {
				return 0, malformed(err)
			}
			if newRecord.FileFlags&directory.FileFlagMultiExtent != 0 {
				return 0, unsupportedf("multi-extent files are not supported")
			}
			if newRecord.RockRidge != nil {
				i.rockRidge = true
				if ce := newRecord.RockRidge.CE; ce != nil {
					// Seek to the continuation area and parse it in place.
					contOffset := int64(ce.Continuation.ExtentLocation())*blockSize + int64(ce.Continuation.Offset)
					contBlock, err := i.readAt(contOffset, int(ce.Continuation.Length))
					if err != nil {
						return 0, malformed(err)
					}
					if err := ce.Continuation.Parse(contBlock, newRecord.RockRidge.BytesToSkip); err != nil {
						return 0, malformed(err)
					}
				}
			}

			if vd.IsPrimary() && i.bootCatalog != nil {
				if newRecord.ExtentLocation() == i.bootCatalog.ExtentLocation() {
					i.bootCatalog.SetDirRecord(newRecord)
				} else if newRecord.ExtentLocation() == i.bootCatalog.Initial.LoadRBA {
					i.bootCatalog.SetInitialEntryDirRecord(newRecord)
				}
			}

			if newRecord.IsDir {
				if !newRecord.IsDot() && !newRecord.IsDotDot() {
					if checkInterchange {
						level, err := validation.InferInterchangeLevel(newRecord.FileIdentifier(), true)
						if err != nil {
							return 0, malformed(err)
						}
						interchangeLevel = max(interchangeLevel, level)
					}
					dirs = append(dirs, newRecord)
					if err := vd.SetPTRDirRecord(newRecord); err != nil {
						return 0, malformed(err)
					}
				}
			} else if checkInterchange {
				level, err := validation.InferInterchangeLevel(newRecord.FileIdentifier(), false)
				if err != nil {
					return 0, malformed(err)
				}
				interchangeLevel = max(interchangeLevel, level)
			}

			if err := dirRecord.AddChild(newRecord, vd, true); err != nil {
				return 0, malformed(err)
			}
		}
	}

	return interchangeLevel, nil
}
