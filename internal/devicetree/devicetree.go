// Package devicetree reads the flattened device tree the kernel booted
// with, to find the board model and the VOP2 node.
package devicetree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/platinasystems/fdt"
)

// DefaultPath is where the kernel exposes the boot FDT blob.
const DefaultPath = "/sys/firmware/fdt"

const (
	fdtMagic      = 0xd00dfeed
	fdtHeaderSize = 40
)

// ErrNoVOP is returned by Load when the tree has no VOP2 node.
var ErrNoVOP = errors.New("no rockchip VOP2 node in device tree")

// Device is one node with its first register window.
type Device struct {
	Path       string   `json:"path"`
	Compatible []string `json:"compatible"`
	Base       uint64   `json:"base"`
	Size       uint64   `json:"size"`
}

// Info is what vop2ctl needs from the tree.
type Info struct {
	Model      string   `json:"model"`
	Compatible []string `json:"compatible"`
	VOP        *Device  `json:"vop,omitempty"`
}

// Load reads and parses the blob at path.
func Load(path string) (*Info, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(blob)
}

// Parse decodes a big-endian FDT blob.
func Parse(blob []byte) (info *Info, err error) {
	if len(blob) < fdtHeaderSize || binary.BigEndian.Uint32(blob) != fdtMagic {
		return nil, errors.New("not a flattened device tree")
	}
	if total := binary.BigEndian.Uint32(blob[4:]); int(total) > len(blob) {
		return nil, fmt.Errorf("device tree truncated: %d of %d bytes", len(blob), total)
	}

	// The parser indexes the blob without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("malformed device tree: %v", r)
		}
	}()

	t := &fdt.Tree{IsLittleEndian: false}
	if err := t.Parse(blob); err != nil {
		return nil, err
	}
	if t.RootNode == nil {
		return nil, errors.New("device tree has no root node")
	}

	root := t.RootNode
	info = &Info{
		Model:      propString(t, root, "model"),
		Compatible: propStrings(t, root, "compatible"),
	}
	info.VOP = findVOP(t, root, "", cells(t, root, "#address-cells", 2), cells(t, root, "#size-cells", 1))
	return info, nil
}

// IsVOP2 reports whether a compatible string names a VOP2.
func IsVOP2(compatible string) bool {
	return strings.HasPrefix(compatible, "rockchip,rk35") && strings.HasSuffix(compatible, "-vop")
}

func findVOP(t *fdt.Tree, n *fdt.Node, path string, addrCells, sizeCells int) *Device {
	// Children are a map; walk them in name order so the result is stable.
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := n.Children[name]
		childPath := path + "/" + name
		for _, c := range propStrings(t, child, "compatible") {
			if !IsVOP2(c) {
				continue
			}
			dev := &Device{Path: childPath, Compatible: propStrings(t, child, "compatible")}
			dev.Base, dev.Size = firstReg(t, child.Properties["reg"], addrCells, sizeCells)
			return dev
		}
		ac := cells(t, child, "#address-cells", addrCells)
		sc := cells(t, child, "#size-cells", sizeCells)
		if dev := findVOP(t, child, childPath, ac, sc); dev != nil {
			return dev
		}
	}
	return nil
}

func firstReg(t *fdt.Tree, reg []byte, addrCells, sizeCells int) (base, size uint64) {
	words := t.PropUint32Slice(reg)
	if len(words) < addrCells+sizeCells {
		return 0, 0
	}
	return join(words[:addrCells]), join(words[addrCells : addrCells+sizeCells])
}

func join(words []uint32) uint64 {
	var v uint64
	for _, w := range words {
		v = v<<32 | uint64(w)
	}
	return v
}

func cells(t *fdt.Tree, n *fdt.Node, name string, fallback int) int {
	if b, ok := n.Properties[name]; ok && len(b) == 4 {
		return int(t.PropUint32(b))
	}
	return fallback
}

func propStrings(t *fdt.Tree, n *fdt.Node, name string) []string {
	b, ok := n.Properties[name]
	if !ok || len(b) == 0 {
		return nil
	}
	var out []string
	for _, s := range t.PropStringSlice(b) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func propString(t *fdt.Tree, n *fdt.Node, name string) string {
	if s := propStrings(t, n, name); len(s) > 0 {
		return s[0]
	}
	return ""
}
