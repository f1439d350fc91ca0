package preflight

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"scribe/internal/services"
)

// CheckDirectoryAccess verifies that the directory exists and is readable and
// writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace reports whether the filesystem holding path has at least
// minGiB available.
func CheckFreeSpace(name, path string, minGiB int) Result {
	if minGiB <= 0 {
		return Result{Name: name, Passed: true, Detail: "no minimum configured"}
	}
	free, err := freeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	if free < uint64(minGiB)<<30 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s free, need %d GiB)", path, humanize.IBytes(free), minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s free)", path, humanize.IBytes(free))}
}

// EnsureWritableDir creates path if needed and verifies write access. Task
// starts call this for their output directory before anything is recorded.
func EnsureWritableDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(services.ErrValidation, "preflight", "output directory", "path required", nil)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return services.Wrap(services.ErrValidation, "preflight", "output directory", path, err)
	}
	if err := unix.Access(path, unix.W_OK|unix.X_OK); err != nil {
		return services.Wrap(services.ErrValidation, "preflight", "output directory",
			fmt.Sprintf("%s is not writable", path), err)
	}
	return nil
}

// EnsureInputFile verifies a local input exists and is a regular file.
func EnsureInputFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(services.ErrValidation, "preflight", "input file", "path required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrValidation, "preflight", "input file",
				fmt.Sprintf("%s does not exist", path), nil)
		}
		return services.Wrap(services.ErrValidation, "preflight", "input file", path, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "preflight", "input file",
			fmt.Sprintf("%s is a directory", path), nil)
	}
	return nil
}

// EnsureFreeSpace fails when the filesystem holding path has less than
// minGiB available. A non-positive minimum disables the check.
func EnsureFreeSpace(path string, minGiB int) error {
	if minGiB <= 0 {
		return nil
	}
	free, err := freeBytes(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "preflight", "free space", path, err)
	}
	if free < uint64(minGiB)<<30 {
		return services.Wrap(services.ErrValidation, "preflight", "free space",
			fmt.Sprintf("%s has %s free, need %d GiB", path, humanize.IBytes(free), minGiB), nil)
	}
	return nil
}

func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
