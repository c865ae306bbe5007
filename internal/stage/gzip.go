package stage

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/shipsite/shipsite/internal/errors"
	"github.com/shipsite/shipsite/internal/tree"
)

// GzipName is the pipeline name of the compression stage.
const GzipName = "gzip"

// GzipSuffix is appended to compressed files when AppendSuffix is set.
const GzipSuffix = ".gz"

// GzipOptions configures Gzip.
type GzipOptions struct {
	// Extensions selects the files to compress.
	Extensions []string

	// KeepUncompressed keeps the original next to the .gz file.
	KeepUncompressed bool

	// AppendSuffix writes <name>.gz. Without it the file is replaced in place.
	AppendSuffix bool

	// Level is the compression level. Default: gzip.BestCompression.
	Level int
}

// Gzip compresses matching files.
type Gzip struct {
	opts GzipOptions
}

// NewGzip creates the compression stage.
func NewGzip(opts GzipOptions) *Gzip {
	if opts.Level == 0 {
		opts.Level = gzip.BestCompression
	}
	return &Gzip{opts: opts}
}

// Name implements pipeline.Stage.
func (s *Gzip) Name() string { return GzipName }

// Apply implements pipeline.Stage.
func (s *Gzip) Apply(ctx context.Context, in *tree.Tree) (*tree.Tree, error) {
	byExt := ExtMatcher(s.opts.Extensions)
	match := func(p string) bool {
		return byExt(p) && !strings.HasSuffix(p, GzipSuffix)
	}

	var mu sync.Mutex
	compressed := make(map[string]*tree.File)

	out, err := transform(ctx, in, match, func(p string, f *tree.File) (*tree.File, error) {
		data, err := Compress(f.Data, s.opts.Level)
		if err != nil {
			return nil, errors.New("E202").WithDetail("Failed to compress " + p).Wrap(err)
		}
		gz := &tree.File{Data: data, Mode: f.Mode}
		if !s.opts.AppendSuffix {
			return gz, nil
		}
		mu.Lock()
		compressed[p] = gz
		mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}

	for p, gz := range compressed {
		out.Put(p+GzipSuffix, gz)
		if !s.opts.KeepUncompressed {
			out.Delete(p)
		}
	}
	return out, nil
}

// Compress gzips data. The header carries no name or timestamp, so equal
// input always yields equal output.
func Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsGzip reports whether data starts with the gzip magic number.
func IsGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
