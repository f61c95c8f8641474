package dialect

import (
	"io"
	"os"
)

// CompileFiles opens and compiles dialect XML documents from disk, in the
// order given, closing each file before returning. A thin OS-facing
// wrapper around the pure Compile function.
func CompileFiles(paths ...string) (*Catalog, error) {
	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	readers := make([]io.Reader, len(paths))
	for i, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, &LoadError{DialectIndex: i, Cause: err}
		}
		files = append(files, f)
		readers[i] = f
	}
	return Compile(readers...)
}
