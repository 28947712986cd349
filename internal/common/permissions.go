package common

// File permissions for files flakeload creates.
const (
	// FilePermissionSecure is used for log files, which may contain account names.
	FilePermissionSecure = 0600
)
