package luks

import "fmt"

// NameConflictError reports that the requested mapper name is already in
// use. The operator must choose another name or close the existing mapping;
// this tool never resolves the conflict itself.
type NameConflictError struct {
	Name string
	Path string
}

func (e *NameConflictError) Error() string {
	return fmt.Sprintf("%s already exists: use a different name or close it first", e.Path)
}

// DeviceBusyError reports cryptsetup's busy exit code on open: the device
// is still mounted or already mapped elsewhere.
type DeviceBusyError struct {
	Device string
}

func (e *DeviceBusyError) Error() string {
	return fmt.Sprintf("device %s is currently in use", e.Device)
}
