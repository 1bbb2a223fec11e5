package constants

import "os"

// Device-mapper constants
const (
	// MapperDir is the directory where the kernel exposes opened LUKS mappings.
	MapperDir = "/dev/mapper"
)

// Backup constants
const (
	// BackupDirName is the directory under the user's home that receives
	// LUKS header backups.
	BackupDirName = "luks_backups"
)

// Security-related constants
const (
	// MinPassphraseLength is the minimum required passphrase length.
	MinPassphraseLength = 8
)

// File permissions
const (
	// DirPermissions is the default permission mode for created directories.
	DirPermissions os.FileMode = 0755
)
