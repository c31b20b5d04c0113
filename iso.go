// Package iso reads, mutates and masters optical-disc filesystem images
// conforming to ISO 9660 / ECMA-119, together with the Joliet and Rock Ridge
// extension suites, El Torito boot catalogs, and the isohybrid MBR wrapper.
package iso

import (
	"fmt"
	"io"
	"iter"

	"github.com/bgrewell/iso-forge/pkg/descriptor"
	"github.com/bgrewell/iso-forge/pkg/directory"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/encoding"
	"github.com/bgrewell/iso-forge/pkg/isohybrid"
	"github.com/bgrewell/iso-forge/pkg/logging"
	"github.com/bgrewell/iso-forge/pkg/pathtable"
)

// Sink is where a mastered image is written: a seekable, truncatable byte
// sink. *os.File satisfies it.
type Sink interface {
	io.Writer
	io.Seeker
	Truncate(size int64) error
}

// Image is an ISO9660 image held in memory: the volume descriptors, the
// directory trees, the path tables, and the boot machinery. Mutations edit
// the graph and re-run the extent allocator so every cross-reference stays
// consistent; Write serializes the result.
//
// An Image is not safe for concurrent use; external concurrency must be
// serialized by the caller.
type Image struct {
	pvd       *descriptor.VolumeDescriptor
	svds      []*descriptor.VolumeDescriptor
	jolietVD  *descriptor.VolumeDescriptor
	brs       []*descriptor.BootRecord
	vdsts     []*descriptor.SetTerminator
	versionVD *descriptor.VersionDescriptor

	bootCatalog *eltorito.BootCatalog
	hybridMBR   *isohybrid.IsoHybrid

	// source is the open byte source of the original image; directory
	// records backed by it are read on demand, so it must stay open for the
	// lifetime of the image object.
	source io.ReadSeeker

	interchangeLevel int
	rockRidge        bool
	initialized      bool

	logger *logging.Logger
}

// New creates a new image from scratch.
func New(opts ...Option) (*Image, error) {
	i := &Image{}
	if err := i.create(opts...); err != nil {
		return nil, err
	}
	return i, nil
}

// Open parses an existing image from a byte source. The source must stay
// open for the lifetime of the image object; deferred reads of file content
// use it during mastering.
func Open(r io.ReadSeeker, opts ...Option) (*Image, error) {
	i := &Image{}
	if err := i.open(r, opts...); err != nil {
		return nil, err
	}
	return i, nil
}

// create builds the minimal descriptor set and assigns extents.
func (i *Image) create(opts ...Option) error {
	if i.initialized {
		return ErrAlreadyInitialized
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	i.logger = logging.Wrap(options.Logger)

	if options.InterchangeLevel < 1 || options.InterchangeLevel > 3 {
		return invalidArgf("interchange level must be between 1 and 3")
	}
	i.interchangeLevel = options.InterchangeLevel

	pub, err := descriptor.NewFileOrTextIdentifier(options.PublisherIdentifier, false)
	if err != nil {
		return invalidArgf("%s", err)
	}
	prep, err := descriptor.NewFileOrTextIdentifier(options.PreparerIdentifier, false)
	if err != nil {
		return invalidArgf("%s", err)
	}
	app, err := descriptor.NewFileOrTextIdentifier(options.ApplicationIdentifier, false)
	if err != nil {
		return invalidArgf("%s", err)
	}

	params := descriptor.Params{
		SystemIdentifier:    options.SystemIdentifier,
		VolumeIdentifier:    options.VolumeIdentifier,
		SetSize:             options.SetSize,
		SeqNum:              options.SeqNum,
		LogBlockSize:        options.LogBlockSize,
		VolumeSetIdentifier: options.VolumeSetIdentifier,
		Publisher:           pub,
		Preparer:            prep,
		Application:         app,
		CopyrightFile:       options.CopyrightFile,
		AbstractFile:        options.AbstractFile,
		BibliographicFile:   options.BibliographicFile,
		ExpirationDate:      options.ExpirationDate,
		ApplicationUse:      options.ApplicationUse,
	}

	if i.pvd, err = descriptor.NewPrimary(params); err != nil {
		return invalidArgf("%s", err)
	}
	i.pvd.AddPathTableRecord(pathtable.NewRoot(i.pvd.RootDirectoryRecord()))

	blockSize := uint32(options.LogBlockSize)

	if options.Joliet {
		jolietParams := params
		if jolietParams.Publisher, err = descriptor.NewFileOrTextIdentifier(string(encoding.EncodeUTF16BE(options.PublisherIdentifier)), false); err != nil {
			return invalidArgf("%s", err)
		}
		if jolietParams.Preparer, err = descriptor.NewFileOrTextIdentifier(string(encoding.EncodeUTF16BE(options.PreparerIdentifier)), false); err != nil {
			return invalidArgf("%s", err)
		}
		if jolietParams.Application, err = descriptor.NewFileOrTextIdentifier(string(encoding.EncodeUTF16BE(options.ApplicationIdentifier)), false); err != nil {
			return invalidArgf("%s", err)
		}

		svd, err := descriptor.NewSupplementary(jolietParams)
		if err != nil {
			return invalidArgf("%s", err)
		}
		i.svds = []*descriptor.VolumeDescriptor{svd}
		i.jolietVD = svd
		svd.AddPathTableRecord(pathtable.NewRoot(svd.RootDirectoryRecord()))

		dot, err := directory.NewDot(svd.Root, svd.SequenceNumber(), false, svd.LogicalBlockSize())
		if err != nil {
			return err
		}
		if err := svd.Root.AddChild(dot, svd, false); err != nil {
			return err
		}
		dotdot, err := directory.NewDotDot(svd.Root, svd.SequenceNumber(), false, svd.LogicalBlockSize())
		if err != nil {
			return err
		}
		if err := svd.Root.AddChild(dotdot, svd, false); err != nil {
			return err
		}

		// One extent for the SVD itself, two per endianness of its path
		// table, and one for its root directory; both descriptors grow.
		additionalSize := blockSize + 2*blockSize + 2*blockSize + blockSize
		i.pvd.AddToSpaceSize(additionalSize)
		svd.AddToSpaceSize(additionalSize)
	}

	i.vdsts = []*descriptor.SetTerminator{descriptor.NewSetTerminator()}
	i.versionVD = descriptor.NewVersionDescriptor()

	dot, err := directory.NewDot(i.pvd.Root, i.pvd.SequenceNumber(), options.RockRidge, i.pvd.LogicalBlockSize())
	if err != nil {
		return err
	}
	if err := i.pvd.Root.AddChild(dot, i.pvd, false); err != nil {
		return err
	}
	dotdot, err := directory.NewDotDot(i.pvd.Root, i.pvd.SequenceNumber(), options.RockRidge, i.pvd.LogicalBlockSize())
	if err != nil {
		return err
	}
	if err := i.pvd.Root.AddChild(dotdot, i.pvd, false); err != nil {
		return err
	}

	i.rockRidge = options.RockRidge
	if i.rockRidge {
		// The ER block.
		i.pvd.AddToSpaceSize(blockSize)
		if options.Joliet {
			i.jolietVD.AddToSpaceSize(blockSize)
		}
	}

	i.reshuffleExtents()
	i.initialized = true

	i.logger.Debug("created new image",
		"interchangeLevel", i.interchangeLevel,
		"joliet", options.Joliet,
		"rockRidge", options.RockRidge)

	return nil
}

// Close releases the byte source reference and resets the object to a
// reusable empty state.
func (i *Image) Close() error {
	if !i.initialized {
		return ErrNotInitialized
	}
	*i = Image{}
	return nil
}

// HasRockRidge reports whether the image carries Rock Ridge extensions.
func (i *Image) HasRockRidge() bool {
	return i.rockRidge
}

// HasElTorito reports whether the image carries an El Torito boot catalog.
func (i *Image) HasElTorito() bool {
	return i.bootCatalog != nil
}

// HasIsoHybrid reports whether the image carries an isohybrid MBR.
func (i *Image) HasIsoHybrid() bool {
	return i.hybridMBR != nil
}

// InterchangeLevel is the interchange level the image claims (or was
// inferred) to conform to.
func (i *Image) InterchangeLevel() int {
	return i.interchangeLevel
}

// PrimaryVolumeDescriptor exposes the image's primary volume descriptor.
func (i *Image) PrimaryVolumeDescriptor() *descriptor.VolumeDescriptor {
	return i.pvd
}

// JolietVolumeDescriptor exposes the Joliet supplementary descriptor, or
// nil when the image has none.
func (i *Image) JolietVolumeDescriptor() *descriptor.VolumeDescriptor {
	return i.jolietVD
}

// GetEntry returns the directory record at an absolute ISO path.
func (i *Image) GetEntry(isoPath string) (*directory.Record, error) {
	if !i.initialized {
		return nil, ErrNotInitialized
	}
	rec, err := i.findRecord(i.pvd, isoPath, false)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListDir yields the children of the directory at an absolute ISO path.
func (i *Image) ListDir(isoPath string) (iter.Seq[*directory.Record], error) {
	if !i.initialized {
		return nil, ErrNotInitialized
	}
	rec, err := i.findRecord(i.pvd, isoPath, false)
	if err != nil {
		return nil, err
	}
	if !rec.IsDir {
		return nil, invalidArgf("%s is not a directory", isoPath)
	}
	children := rec.Children
	return func(yield func(*directory.Record) bool) {
		for _, child := range children {
			if !yield(child) {
				return
			}
		}
	}, nil
}

// PrintTree dumps the directory hierarchy with per-record extents; useful
// for debugging.
func (i *Image) PrintTree(w io.Writer) {
	if !i.initialized {
		return
	}
	root := i.pvd.RootDirectoryRecord()
	fmt.Fprintf(w, "%s (extent %d)\n", root.FileIdentifier(), root.ExtentLocation())

	type frame struct {
		rec   *directory.Record
		depth int
	}
	stack := []frame{{root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range f.rec.Children {
			if child.IsDot() || child.IsDotDot() {
				continue
			}
			fmt.Fprintf(w, "%*s%s (extent %d)\n", 4*(f.depth+1), "", child.FileIdentifier(), child.ExtentLocation())
			if child.IsDir {
				stack = append(stack, frame{child, f.depth + 1})
			}
		}
	}
}
