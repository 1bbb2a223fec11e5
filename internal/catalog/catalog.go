// Package catalog enumerates block devices through lsblk and classifies
// their encryption and partition-table state.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PabloReinhardt/usb-luks-encryption-manager/internal/cmdrunner"
)

// Column sets requested from lsblk: the wide one backs the candidate
// listing, the narrow one classifies a single device.
const (
	listColumns   = "NAME,SIZE,TYPE,ROTA,MODEL,VENDOR,FSTYPE,MOUNTPOINT,RM"
	detectColumns = "NAME,TYPE,FSTYPE"
)

// Device is one removable disk eligible for encryption or opening.
type Device struct {
	Path      string `json:"path"`
	Size      string `json:"size"`
	Model     string `json:"model"`
	Vendor    string `json:"vendor"`
	Removable bool   `json:"removable"`
	Mounted   bool   `json:"mounted"`
}

// Label renders the human-readable identity shown in the device menu.
func (d Device) Label() string {
	if d.Vendor != "" && d.Model != "" {
		return fmt.Sprintf("%s %s %s", d.Vendor, d.Model, d.Size)
	}
	return fmt.Sprintf("%s %s", d.Path, d.Size)
}

// TableKind classifies a device's partition table.
type TableKind string

const (
	TableGPT     TableKind = "gpt"
	TableMBR     TableKind = "mbr"
	TableUnknown TableKind = "unknown"
	TableOther   TableKind = "other"
)

// Catalog queries lsblk and parted through an injected runner.
type Catalog struct {
	run cmdrunner.Runner
	log zerolog.Logger
}

// New returns a Catalog backed by the given runner.
func New(run cmdrunner.Runner, log zerolog.Logger) *Catalog {
	return &Catalog{run: run, log: log}
}

// ListCandidates returns removable, non-NVMe whole disks in enumeration
// order. An empty result is a normal outcome, not an error. Mounted devices
// are kept: the operator may want to open an already-encrypted device after
// unmounting it.
func (c *Catalog) ListCandidates(ctx context.Context) ([]Device, error) {
	res, err := c.run.Run(ctx, cmdrunner.Request{
		Name: "lsblk",
		Args: []string{"--json", "-o", listColumns},
	})
	if err != nil {
		return nil, fmt.Errorf("list block devices: %w", err)
	}

	var tree rawTree
	if err := json.Unmarshal(res.Stdout, &tree); err != nil {
		return nil, fmt.Errorf("parse lsblk output: %w", err)
	}

	var devices []Device
	for _, raw := range tree.Blockdevices {
		if raw.Type != "disk" {
			c.log.Debug().Str("name", raw.Name).Str("type", raw.Type).Msg("skipping non-disk entry")
			continue
		}
		if strings.Contains(strings.ToLower(raw.Name), "nvme") {
			c.log.Debug().Str("name", raw.Name).Msg("skipping NVMe device")
			continue
		}
		if raw.RM == nil || !*raw.RM {
			c.log.Debug().Str("name", raw.Name).Msg("skipping non-removable device")
			continue
		}

		devices = append(devices, Device{
			Path:      "/dev/" + raw.Name,
			Size:      sizeLabel(raw.Size),
			Model:     strings.TrimSpace(raw.Model),
			Vendor:    strings.TrimSpace(raw.Vendor),
			Removable: true,
			Mounted:   anyMounted(raw),
		})
	}

	return devices, nil
}

// DetectEncryption reports whether the device or any descendant carries a
// LUKS layer. Any query failure counts as "not encrypted": detection only
// chooses which menu branch is offered, and the destructive path is gated
// by its own confirmation sentence.
func (c *Catalog) DetectEncryption(ctx context.Context, devicePath string) bool {
	res, err := c.run.Run(ctx, cmdrunner.Request{
		Name: "lsblk",
		Args: []string{"--json", "-o", detectColumns, devicePath},
	})
	if err != nil {
		c.log.Debug().Err(err).Str("device", devicePath).Msg("could not determine LUKS status")
		return false
	}

	var tree rawTree
	if err := json.Unmarshal(res.Stdout, &tree); err != nil {
		c.log.Debug().Err(err).Str("device", devicePath).Msg("could not parse LUKS status")
		return false
	}
	if len(tree.Blockdevices) == 0 {
		return false
	}

	return hasCryptLayer(tree.Blockdevices[0])
}

// PartitionTable probes the device's partition-table kind. parted's nonzero
// exits are tolerated; a missing or unreadable label yields TableUnknown.
func (c *Catalog) PartitionTable(ctx context.Context, devicePath string) TableKind {
	res, err := c.run.Run(ctx, cmdrunner.Request{
		Name:            "parted",
		Args:            []string{"-s", devicePath, "print"},
		TolerateNonZero: true,
	})
	if err != nil {
		c.log.Debug().Err(err).Str("device", devicePath).Msg("partition table probe failed")
		return TableUnknown
	}

	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if !strings.Contains(line, "Partition Table:") {
			continue
		}
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		return parseTableKind(strings.ToLower(strings.TrimSpace(value)))
	}

	return TableUnknown
}

// parseTableKind maps parted's vocabulary onto the kinds this tool
// distinguishes; parted reports MBR tables as "msdos".
func parseTableKind(value string) TableKind {
	switch value {
	case "gpt":
		return TableGPT
	case "msdos", "mbr", "dos":
		return TableMBR
	case "":
		return TableUnknown
	default:
		return TableOther
	}
}

func hasCryptLayer(d rawDevice) bool {
	if d.Type == "crypt" || strings.EqualFold(d.FSType, "crypto_LUKS") {
		return true
	}
	for _, child := range d.Children {
		if hasCryptLayer(child) {
			return true
		}
	}
	return false
}

func anyMounted(d rawDevice) bool {
	if d.Mountpoint != nil && *d.Mountpoint != "" {
		return true
	}
	for _, child := range d.Children {
		if anyMounted(child) {
			return true
		}
	}
	return false
}

// sizeLabel renders lsblk's size field, which is a string on modern
// util-linux and a raw byte count on older versions.
func sizeLabel(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return "Unknown Size"
	default:
		return fmt.Sprintf("%v", s)
	}
}
