package tracker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const fallbackFilename = "export"

// Saver stores a downloaded artifact and returns where it ended up.
type Saver interface {
	Save(filename string, data []byte) (string, error)
}

// DirSaver writes artifacts into Dir. Names are reduced to their base name
// and never overwrite an existing file; "out.csv" becomes "out (1).csv".
type DirSaver struct {
	Dir string
}

func (d DirSaver) Save(filename string, data []byte) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		name = fallbackFilename
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(d.Dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("no free file name for %q in %s", name, d.Dir)
}
