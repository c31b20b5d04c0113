package consts

const (
	// Number of system area sectors.
	ISO9660_SYSTEM_AREA_SECTORS = 16

	// Standard ISO9660 identifier.
	ISO9660_STD_IDENTIFIER = "CD001"

	// ISO9660 volume descriptor version (always 1).
	ISO9660_VOLUME_DESC_VERSION = 1

	// ISO9660 default sector size.
	ISO9660_SECTOR_SIZE = 2048

	// Path tables are recorded in 4096-byte units; each copy is padded to a
	// multiple of this size.
	ISO9660_PATH_TABLE_UNIT = 4096

	// ISO9660 application use area size.
	ISO9660_APPLICATION_USE_SIZE = 512

	// JOLIET level 1, 2, and 3 escape sequences.
	JOLIET_LEVEL_1_ESCAPE = "%/@"
	JOLIET_LEVEL_2_ESCAPE = "%/C"
	JOLIET_LEVEL_3_ESCAPE = "%/E"

	// El Torito bootable cdrom system identifier.
	EL_TORITO_BOOT_SYSTEM_ID = "EL TORITO SPECIFICATION"

	// The El Torito specification, section 2.0, requires the boot record to
	// live at extent 17.
	EL_TORITO_BOOT_RECORD_EXTENT = 17

	// d1-characters accepted in ISO9660 identifiers after upper-casing. The
	// strict d-character set is A-Z0-9_; the remainder is what appears on
	// interchange-level-3 media in the wild.
	D1_CHARACTERS = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_.-+()~&!@$"

	// Separators allowed by ISO9660, 0x2E and 0x3B.
	ISO9660_SEPARATOR_1 = "."
	ISO9660_SEPARATOR_2 = ";"

	// ISO9660 Filler 0x20 (space).
	ISO9660_FILLER = " "

	// Rock Ridge extension identification, carried in the root ER record.
	ROCK_RIDGE_IDENTIFIER  = "RRIP_1991A"
	ROCK_RIDGE_DESCRIPTION = "THE ROCK RIDGE INTERCHANGE PROTOCOL PROVIDES SUPPORT FOR POSIX FILE SYSTEM SEMANTICS"
	ROCK_RIDGE_SOURCE      = "PLEASE CONTACT DISC PUBLISHER FOR SPECIFICATION SOURCE.  SEE PUBLISHER IDENTIFIER IN PRIMARY VOLUME DESCRIPTOR FOR CONTACT INFORMATION."
	ROCK_RIDGE_VERSION     = 1

	// All isolinux isohdpfx.bin bootstrap blobs begin with 0x33 0xED
	// (xor %bp, %bp), which is how a hybrid MBR is recognized.
	ISOHYBRID_MBR_MAGIC = "\x33\xed"
)
