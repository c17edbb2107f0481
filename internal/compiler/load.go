package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/carrotlabs/feedgate/internal/feed"
)

// LoadFeedFile reads and compiles a CUE feed file from disk. The file must
// declare a top-level "feed" struct.
func LoadFeedFile(path string) (*feed.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compiler: read %s: %w", path, err)
	}
	return LoadFeedBytes(path, data)
}

// LoadFeedBytes compiles CUE source held in memory. filename is used for
// error positions only.
func LoadFeedBytes(filename string, data []byte) (*feed.Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileFeed(v.LookupPath(cue.ParsePath("feed")))
}
