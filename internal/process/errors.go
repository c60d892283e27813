package process

import "errors"

// Domain errors for the process package.
//
// Detail (paths, underlying causes) is attached with fmt.Errorf("%w: ...")
// so callers check with errors.Is and the UI shows err.Error() as-is:
//
//	if errors.Is(err, process.ErrDataPathNotExist) {
//	    // ask the user to pick another directory
//	}
var (
	// ErrDataPathRequired is returned when the launch config has no data path.
	ErrDataPathRequired = errors.New("data path is required")

	// ErrDataPathNotExist is returned when the data path does not exist.
	ErrDataPathNotExist = errors.New("data path does not exist")

	// ErrBinaryNotFound is returned when the resolved RustFS binary is missing.
	ErrBinaryNotFound = errors.New("RustFS binary not found")

	// ErrMetadata is returned when the binary cannot be stat'ed.
	ErrMetadata = errors.New("failed to read binary metadata")

	// ErrNotRegularFile is returned when the binary path is not a regular file.
	ErrNotRegularFile = errors.New("binary path is not a regular file")

	// ErrBinaryExecution is returned when the binary cannot be spawned.
	ErrBinaryExecution = errors.New("failed to execute RustFS binary")

	// ErrBinaryFailed is returned when the diagnostic run exits unsuccessfully.
	ErrBinaryFailed = errors.New("RustFS binary failed")
)

// IsValidation reports whether err is a launch-config validation failure,
// as opposed to an I/O or execution failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrDataPathRequired) || errors.Is(err, ErrDataPathNotExist)
}
