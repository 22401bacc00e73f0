package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

func pass(name, format string, args ...any) Result {
	return Result{Name: name, OK: true, Detail: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) Result {
	return Result{Name: name, Detail: fmt.Sprintf(format, args...)}
}

// CheckDirectoryAccess verifies path is a directory this process can read,
// write, and traverse.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return fail(name, "%s does not exist", path)
	case err != nil:
		return fail(name, "stat %s: %v", path, err)
	case !info.IsDir():
		return fail(name, "%s is not a directory", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail(name, "%s permissions: %v", path, err)
	}
	return pass(name, "%s (read/write ok)", path)
}

// CheckFreeSpace verifies the filesystem holding path has at least minGiB
// gibibytes available for new downloads.
func CheckFreeSpace(name, path string, minGiB int) Result {
	total, free, err := statfs(path)
	if err != nil {
		return fail(name, "statfs %s: %v", path, err)
	}
	minGiB = max(minGiB, 0)
	if free < uint64(minGiB)<<30 {
		return fail(name, "%s has %.1f GiB free, need %d GiB", path, gib(free), minGiB)
	}
	return pass(name, "%s (%.1f GiB free of %.1f GiB)", path, gib(free), gib(total))
}

// CheckBinary verifies command resolves on PATH.
func CheckBinary(name, command string) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return fail(name, "command not configured")
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return fail(name, "binary %q not found on PATH", command)
	}
	return pass(name, "%s", resolved)
}

// statfs is swapped out in tests.
var statfs = realStatfs

func realStatfs(path string) (total, free uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total = stat.Blocks * uint64(stat.Bsize)
	free = stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}

func gib(bytes uint64) float64 {
	return float64(bytes) / (1 << 30)
}
