package iso

import (
	"time"

	"github.com/bgrewell/iso-forge/pkg/isohybrid"
	"github.com/go-logr/logr"
)

// Options represents the configuration of a new or opened image.
type Options struct {
	InterchangeLevel      int
	SystemIdentifier      string
	VolumeIdentifier      string
	SetSize               uint16
	SeqNum                uint16
	LogBlockSize          uint16
	VolumeSetIdentifier   string
	PublisherIdentifier   string
	PreparerIdentifier    string
	ApplicationIdentifier string
	CopyrightFile         string
	AbstractFile          string
	BibliographicFile     string
	ExpirationDate        time.Time
	ApplicationUse        []byte
	Joliet                bool
	RockRidge             bool
	Logger                logr.Logger
}

// Option represents a function that modifies the Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		InterchangeLevel:      1,
		SetSize:               1,
		SeqNum:                1,
		LogBlockSize:          2048,
		ApplicationIdentifier: "iso-forge",
		Logger:                logr.Discard(),
	}
}

// WithInterchangeLevel sets the ISO9660 interchange level; this dictates the
// rules on the names of files. Level 1, the most conservative, is the
// default.
func WithInterchangeLevel(level int) Option {
	return func(o *Options) { o.InterchangeLevel = level }
}

// WithSystemIdentifier sets the system identification string.
func WithSystemIdentifier(ident string) Option {
	return func(o *Options) { o.SystemIdentifier = ident }
}

// WithVolumeIdentifier sets the volume identification string.
func WithVolumeIdentifier(ident string) Option {
	return func(o *Options) { o.VolumeIdentifier = ident }
}

// WithSetSize sets the size of the set of ISOs this image is a part of.
func WithSetSize(size uint16) Option {
	return func(o *Options) { o.SetSize = size }
}

// WithSequenceNumber sets the sequence number of this image in its set.
func WithSequenceNumber(seq uint16) Option {
	return func(o *Options) { o.SeqNum = seq }
}

// WithLogicalBlockSize sets the logical block size. Sizes other than 2048
// are accepted but almost certainly will not work with real media.
func WithLogicalBlockSize(size uint16) Option {
	return func(o *Options) { o.LogBlockSize = size }
}

// WithVolumeSetIdentifier sets the volume set identification string.
func WithVolumeSetIdentifier(ident string) Option {
	return func(o *Options) { o.VolumeSetIdentifier = ident }
}

// WithPublisherIdentifier sets the publisher identification string.
func WithPublisherIdentifier(ident string) Option {
	return func(o *Options) { o.PublisherIdentifier = ident }
}

// WithPreparerIdentifier sets the data preparer identification string.
func WithPreparerIdentifier(ident string) Option {
	return func(o *Options) { o.PreparerIdentifier = ident }
}

// WithApplicationIdentifier sets the application identification string.
func WithApplicationIdentifier(ident string) Option {
	return func(o *Options) { o.ApplicationIdentifier = ident }
}

// WithCopyrightFile names a file at the root of the image as the copyright
// file.
func WithCopyrightFile(name string) Option {
	return func(o *Options) { o.CopyrightFile = name }
}

// WithAbstractFile names a file at the root of the image as the abstract
// file.
func WithAbstractFile(name string) Option {
	return func(o *Options) { o.AbstractFile = name }
}

// WithBibliographicFile names a file at the root of the image as the
// bibliographic file.
func WithBibliographicFile(name string) Option {
	return func(o *Options) { o.BibliographicFile = name }
}

// WithExpirationDate sets the date the image's contents expire.
func WithExpirationDate(t time.Time) Option {
	return func(o *Options) { o.ExpirationDate = t }
}

// WithApplicationUse stuffs arbitrary data (at most 512 bytes) into the
// primary volume descriptor.
func WithApplicationUse(data []byte) Option {
	return func(o *Options) { o.ApplicationUse = data }
}

// WithJoliet adds a Joliet hierarchy to the image.
func WithJoliet(enabled bool) Option {
	return func(o *Options) { o.Joliet = enabled }
}

// WithRockRidge adds Rock Ridge extensions to the image.
func WithRockRidge(enabled bool) Option {
	return func(o *Options) { o.RockRidge = enabled }
}

// WithLogger sets the logger for the image.
func WithLogger(logger logr.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WriteOptions configure mastering.
type WriteOptions struct {
	BlockSize int
	Progress  ProgressFunc
}

// WriteOption represents a function that modifies the WriteOptions.
type WriteOption func(*WriteOptions)

// ProgressFunc receives cumulative mastering progress: bytes emitted so far
// and the total the image will occupy.
type ProgressFunc func(done, total int64)

// WithBlockSize sets the copy block size used while mastering; 8192 by
// default.
func WithBlockSize(size int) WriteOption {
	return func(o *WriteOptions) { o.BlockSize = size }
}

// WithProgress installs a progress callback invoked as the write proceeds.
func WithProgress(cb ProgressFunc) WriteOption {
	return func(o *WriteOptions) { o.Progress = cb }
}

// HybridOptions configure isohybrid wrapping.
type HybridOptions struct {
	PartEntry       int
	MBRID           uint32
	PartOffset      uint32
	GeometrySectors int
	GeometryHeads   int
	PartType        uint8
}

// HybridOption represents a function that modifies the HybridOptions.
type HybridOption func(*HybridOptions)

func defaultHybridOptions() HybridOptions {
	return HybridOptions{
		PartEntry:       1,
		GeometrySectors: 32,
		GeometryHeads:   64,
		PartType:        isohybrid.DefaultPartType,
	}
}

// WithPartEntry selects the partition slot (1-4) for the hybrid partition.
func WithPartEntry(entry int) HybridOption {
	return func(o *HybridOptions) { o.PartEntry = entry }
}

// WithMBRID sets the MBR id; zero draws a random one.
func WithMBRID(id uint32) HybridOption {
	return func(o *HybridOptions) { o.MBRID = id }
}

// WithPartOffset sets the partition offset.
func WithPartOffset(offset uint32) HybridOption {
	return func(o *HybridOptions) { o.PartOffset = offset }
}

// WithGeometry sets the CHS geometry used for the partition table.
func WithGeometry(sectors, heads int) HybridOption {
	return func(o *HybridOptions) {
		o.GeometrySectors = sectors
		o.GeometryHeads = heads
	}
}

// WithPartType sets the partition type byte.
func WithPartType(ptype uint8) HybridOption {
	return func(o *HybridOptions) { o.PartType = ptype }
}
