package converter

import (
	"strings"

	"heic_converter/internal/codec"
)

// DeriveName swaps the extension of originalName for the canonical extension of target.
// Only a final ".xxx" suffix is stripped; a name without one keeps its full base.
func DeriveName(originalName string, target codec.Format) string {
	base := originalName
	if i := strings.LastIndexByte(originalName, '.'); i >= 0 {
		ext := originalName[i+1:]
		if ext != "" && !strings.ContainsRune(ext, '/') {
			base = originalName[:i]
		}
	}
	return base + "." + target.Extension()
}
