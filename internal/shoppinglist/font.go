package shoppinglist

import (
	"fmt"
	"os"
	"sync"
)

// The font registry is process-wide. cmd/server registers the configured
// TTF once at start-up, before any request can render a document.
var fonts = struct {
	sync.Mutex
	byName map[string][]byte
	active string
}{byName: make(map[string][]byte)}

// RegisterFont loads a TrueType font from path under name. The first font
// registered becomes the one documents are rendered with.
//
// Registering a name that is already known is a no-op that returns nil, so
// repeated initialization is harmless and the file is read only once.
func RegisterFont(name, path string) error {
	fonts.Lock()
	defer fonts.Unlock()

	if _, ok := fonts.byName[name]; ok {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("shoppinglist: reading font %s: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("shoppinglist: font file %s is empty", path)
	}

	fonts.byName[name] = data
	if fonts.active == "" {
		fonts.active = name
	}
	return nil
}

// activeFont returns the registered font used for rendering, if any.
func activeFont() (string, []byte, bool) {
	fonts.Lock()
	defer fonts.Unlock()

	if fonts.active == "" {
		return "", nil, false
	}
	return fonts.active, fonts.byName[fonts.active], true
}
