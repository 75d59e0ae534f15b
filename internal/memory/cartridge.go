package memory

import (
	"fmt"
	"os"
)

// LoadROMFile reads a cartridge image from disk as a flat byte vector — no
// header, no bank metadata, no magic number. On a read failure it follows
// the source's acknowledged weakness: it still returns a (non-nil, empty)
// ROM image so the caller can continue, alongside the wrapped error for the
// caller to report.
func LoadROMFile(path string) ([]uint8, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return []uint8{}, fmt.Errorf("read ROM file %s: %w", path, err)
	}
	return data, nil
}
