package iso

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/bgrewell/iso-forge/pkg/descriptor"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/encoding"
)

// defaultWriteBlockSize is the copy block size used while mastering.
const defaultWriteBlockSize = 8192

// copyData copies dataLength bytes from in to out. When both endpoints are
// OS file handles the kernel's zero-copy path is used through io.Copy's
// ReadFrom delegation; the file abstraction keeps both positions in sync
// afterwards, which the raw syscall would not.
func copyData(dataLength int64, blockSize int, in io.Reader, out io.Writer) (int64, error) {
	if inFile, ok := in.(*os.File); ok {
		if outFile, ok := out.(*os.File); ok {
			return io.Copy(outFile, io.LimitReader(inFile, dataLength))
		}
	}
	buf := make([]byte, blockSize)
	return io.CopyBuffer(out, io.LimitReader(in, dataLength), buf)
}

// seekWrite writes data at the given byte offset of the sink.
func seekWrite(w Sink, offset int64, data []byte) error {
	if _, err := w.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// Write masters the image to the sink: descriptors, path tables, directory
// extents with their Rock Ridge continuation areas, then file contents,
// each at the extent the allocator assigned. This also goes by the name of
// "mastering".
func (i *Image) Write(w Sink, opts ...WriteOption) error {
	if !i.initialized {
		return ErrNotInitialized
	}

	options := WriteOptions{BlockSize: defaultWriteBlockSize}
	for _, opt := range opts {
		opt(&options)
	}

	blockSize := int64(i.pvd.LogicalBlockSize())
	total := int64(i.pvd.SpaceSize) * blockSize

	var done int64
	progress := func(n int64) {
		done += n
		if options.Progress != nil {
			options.Progress(done, total)
		}
	}
	if options.Progress != nil {
		options.Progress(0, total)
	}

	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if i.hybridMBR != nil {
		if _, err := w.Write(i.hybridMBR.Record(total)); err != nil {
			return err
		}
	}

	// The system area (sectors 0 to 15) is unconstrained; skip it.
	pvdRec := i.pvd.Marshal()
	if err := seekWrite(w, int64(i.pvd.ExtentLocation())*blockSize, pvdRec); err != nil {
		return err
	}
	progress(int64(len(pvdRec)))

	for _, br := range i.brs {
		rec := br.Marshal()
		if err := seekWrite(w, int64(br.ExtentLocation())*blockSize, rec); err != nil {
			return err
		}
		progress(int64(len(rec)))
	}

	for _, svd := range i.svds {
		rec := svd.Marshal()
		if err := seekWrite(w, int64(svd.ExtentLocation())*blockSize, rec); err != nil {
			return err
		}
		progress(int64(len(rec)))
	}

	for _, vdst := range i.vdsts {
		rec := vdst.Marshal()
		if err := seekWrite(w, int64(vdst.ExtentLocation())*blockSize, rec); err != nil {
			return err
		}
		progress(int64(len(rec)))
	}

	rec := i.versionVD.Marshal(i.pvd.LogicalBlockSize())
	if err := seekWrite(w, int64(i.versionVD.ExtentLocation())*blockSize, rec); err != nil {
		return err
	}
	progress(int64(len(rec)))

	// Path tables, both endiannesses, each copy padded to 4096 bytes.
	for _, vd := range i.volumes() {
		if err := seekWrite(w, int64(vd.PathTableLocationLE)*blockSize, vd.MarshalPathTable(true)); err != nil {
			return err
		}
		if err := seekWrite(w, int64(vd.PathTableLocationBE)*blockSize, vd.MarshalPathTable(false)); err != nil {
			return err
		}
		progress(int64(vd.PathTableNumExtents) * 2 * blockSize)
	}

	// The primary tree carries the data; supplementary trees only their
	// directory extents.
	if err := i.writeTree(w, i.pvd, true, options.BlockSize, progress); err != nil {
		return err
	}
	for _, svd := range i.svds {
		if err := i.writeTree(w, svd, false, options.BlockSize, progress); err != nil {
			return err
		}
	}

	if err := w.Truncate(total); err != nil {
		return err
	}

	if i.hybridMBR != nil {
		if _, err := w.Seek(0, io.SeekEnd); err != nil {
			return err
		}
		if _, err := w.Write(i.hybridMBR.RecordPadding(total)); err != nil {
			return err
		}
	}

	if options.Progress != nil {
		end, err := w.Seek(0, io.SeekEnd)
		if err != nil {
			return err
		}
		options.Progress(end, total)
	}

	i.logger.Debug("mastered image", "bytes", total)
	return nil
}

// volumes lists the primary descriptor followed by every supplementary one.
func (i *Image) volumes() []*descriptor.VolumeDescriptor {
	return append([]*descriptor.VolumeDescriptor{i.pvd}, i.svds...)
}

// writeTree walks one volume breadth-first, emitting each directory's child
// records padded to the block boundary, Rock Ridge continuation areas at
// their assigned (extent, offset), and, when writeData is set, file
// contents padded to the block boundary.
func (i *Image) writeTree(w Sink, vd *descriptor.VolumeDescriptor, writeData bool, copyBlockSize int, progress func(int64)) error {
	blockSize := int64(vd.LogicalBlockSize())

	dirs := []*directory.Record{vd.RootDirectoryRecord()}
	for len(dirs) > 0 {
		curr := dirs[0]
		dirs = dirs[1:]
		var recordOffset int64
		if curr.IsDir {
			progress(int64(curr.FileLength()))
		}

		for _, child := range curr.Children {
			// Whatever the child is, its directory record is emitted into
			// the parent's extent first.
			dirExtent := child.Parent.ExtentLocation()
			recBytes := child.Marshal()
			if err := seekWrite(w, int64(dirExtent)*blockSize+recordOffset, recBytes); err != nil {
				return err
			}
			recordOffset += int64(len(recBytes))

			if child.RockRidge != nil && child.RockRidge.CE != nil {
				cont := child.RockRidge.CE.Continuation
				contBytes := cont.Record()
				contOffset := int64(cont.ExtentLocation())*blockSize + int64(cont.Offset)
				if err := seekWrite(w, contOffset, contBytes); err != nil {
					return err
				}
				if cont.Offset == 0 {
					// A fresh area claims its whole block; pad it so later
					// allocations stay aligned.
					pad := encoding.PadLen(int64(len(contBytes)), blockSize)
					if _, err := w.Write(make([]byte, pad)); err != nil {
						return err
					}
					progress(int64(len(contBytes)) + pad)
				}
			}

			if child.IsDir {
				if !child.IsDot() && !child.IsDotDot() {
					dirs = append(dirs, child)
				}
				// Pad the parent's extent out to the block boundary.
				pos, err := w.Seek(0, io.SeekCurrent)
				if err != nil {
					return err
				}
				if _, err := w.Write(make([]byte, encoding.PadLen(pos, blockSize))); err != nil {
					return err
				}
				continue
			}

			if writeData && child.DataLength > 0 {
				if err := i.writeFileData(w, child, copyBlockSize, progress); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// writeFileData copies one file's content to its assigned extent, padding
// the tail to the block boundary. The boot catalog's synthetic file is
// regenerated from the live entries so the load RBA the allocator assigned
// is what lands on disk.
func (i *Image) writeFileData(w Sink, child *directory.Record, copyBlockSize int, progress func(int64)) error {
	blockSize := int64(i.pvd.LogicalBlockSize())

	var data io.Reader
	var length int64
	if i.bootCatalog != nil && i.bootCatalog.DirRecord == child {
		catalog := i.bootCatalog.Record()
		data = bytes.NewReader(catalog)
		length = int64(len(catalog))
	} else {
		src, n, err := child.OpenData(i.pvd.LogicalBlockSize())
		if err != nil {
			return fmt.Errorf("opening data for %q: %w", child.FileIdentifier(), err)
		}
		data = src
		length = int64(n)
	}

	if _, err := w.Seek(int64(child.ExtentLocation())*blockSize, io.SeekStart); err != nil {
		return err
	}
	copied, err := copyData(length, copyBlockSize, data, w)
	if err != nil {
		return fmt.Errorf("copying data for %q: %w", child.FileIdentifier(), err)
	}
	if copied != length {
		return fmt.Errorf("short copy for %q: %d of %d bytes", child.FileIdentifier(), copied, length)
	}
	pad := encoding.PadLen(length, blockSize)
	if _, err := w.Write(make([]byte, pad)); err != nil {
		return err
	}
	progress(length + pad)
	return nil
}

// GetAndWrite fetches a single file from the image and writes its content
// to the writer. On a Joliet image the path is resolved against the Joliet
// hierarchy first. Symlinks carry no data and are refused.
func (i *Image) GetAndWrite(isoPath string, out io.Writer, blockSize int) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if blockSize <= 0 {
		blockSize = defaultWriteBlockSize
	}

	var rec *directory.Record
	if i.jolietVD != nil {
		if jolietRec, err := i.findRecord(i.jolietVD, isoPath, true); err == nil {
			rec = jolietRec
		}
	}
	if rec == nil {
		found, err := i.findRecord(i.pvd, isoPath, false)
		if err != nil {
			return err
		}
		if found.RockRidge != nil && found.RockRidge.IsSymlink() {
			// A symlink's target may point outside the image entirely;
			// following it is the caller's business.
			return invalidArgf("symlinks have no data associated with them")
		}
		rec = found
	}

	data, length, err := rec.OpenData(i.pvd.LogicalBlockSize())
	if err != nil {
		return invalidArgf("%s", err)
	}
	copied, err := copyData(int64(length), blockSize, data, out)
	if err != nil {
		return err
	}
	if copied != int64(length) {
		return malformed(fmt.Errorf("short read for %q: %d of %d bytes", isoPath, copied, length))
	}
	return nil
}
