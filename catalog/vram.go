package catalog

import "encoding/json"

// VRAMChange describes what NormalizeVRAM did to a template.
type VRAMChange int

const (
	VRAMUnchanged VRAMChange = iota
	// VRAMFromSize: vram was missing or 0 and was filled from size.
	VRAMFromSize
	// VRAMZeroed: size is 0 so vram was forced to 0.
	VRAMZeroed
)

// NormalizeVRAM enforces the size/vram invariant: a positive size never
// leaves vram at a stale 0, and a zero size always means vram 0. Templates
// without a numeric size are left alone.
func NormalizeVRAM(t *Template) VRAMChange {
	size, ok := t.Number(FieldSize)
	if !ok {
		return VRAMUnchanged
	}
	vram, hasVRAM := t.Number(FieldVRAM)

	if size > 0 {
		if hasVRAM && vram != 0 {
			return VRAMUnchanged
		}
		raw, _ := t.Get(FieldSize)
		t.Set(FieldVRAM, append(json.RawMessage(nil), raw...))
		return VRAMFromSize
	}

	if hasVRAM && vram == 0 {
		return VRAMUnchanged
	}
	t.Set(FieldVRAM, json.RawMessage("0"))
	return VRAMZeroed
}
