package process

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Inspector checks a binary before it is executed. Observations are passed
// to report and end up in the app log; a returned error aborts the launch.
type Inspector interface {
	Inspect(path string, report func(msg string)) error
}

// DefaultInspector returns the inspector for the running platform.
func DefaultInspector() Inspector {
	if runtime.GOOS == "windows" {
		return WindowsInspector{}
	}
	return UnixInspector{}
}

// UnixInspector reports the permission bits and warns when the binary has
// no execute bit set.
type UnixInspector struct{}

// Inspect implements Inspector.
func (UnixInspector) Inspect(path string, report func(string)) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w for %s: %w", ErrMetadata, path, err)
	}

	perm := info.Mode().Perm()
	report(fmt.Sprintf("File permissions for %s: %o", path, perm))
	if perm&0o111 == 0 {
		report("WARNING: Binary is not executable")
	}
	return nil
}

// WindowsInspector reports size and attributes. Execute permission does not
// exist on Windows, so the extension is checked instead.
type WindowsInspector struct{}

// Inspect implements Inspector.
func (WindowsInspector) Inspect(path string, report func(string)) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w for %s: %w", ErrMetadata, path, err)
	}

	report(fmt.Sprintf("File size: %d bytes", info.Size()))

	if info.Mode().Perm()&0o200 == 0 {
		report("WARNING: Binary file is read-only")
	}

	if !info.Mode().IsRegular() {
		report("ERROR: Path is not a regular file")
		return fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}

	switch ext := strings.TrimPrefix(filepath.Ext(path), "."); {
	case ext == "":
		report("WARNING: File has no extension")
	case !strings.EqualFold(ext, "exe"):
		report("WARNING: File does not have .exe extension: " + ext)
	}

	report("Windows binary permissions check completed")
	return nil
}
