package catalog

// rawTree mirrors the top-level object emitted by lsblk --json.
type rawTree struct {
	Blockdevices []rawDevice `json:"blockdevices"`
}

// rawDevice mirrors one lsblk entry. Field types are loose on purpose:
// depending on the util-linux version, size arrives as a string or a byte
// count, and flags may be absent entirely.
type rawDevice struct {
	Name       string      `json:"name"`
	Size       any         `json:"size"`
	Type       string      `json:"type"`
	Rota       *bool       `json:"rota"`
	Model      string      `json:"model"`
	Vendor     string      `json:"vendor"`
	FSType     string      `json:"fstype"`
	Mountpoint *string     `json:"mountpoint"`
	RM         *bool       `json:"rm"`
	Children   []rawDevice `json:"children"`
}
