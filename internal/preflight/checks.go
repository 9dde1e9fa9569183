package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"lapsecam/internal/config"
)

// Requirement defines an external binary lapsecam relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
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

// CheckFramesDir reports which frames directory the daemon would use, in
// the same order the daemon resolves them. Neither directory is created.
func CheckFramesDir(primary, fallback string) Result {
	const name = "Frames directory"

	first := CheckDirectoryAccess(name, primary)
	if first.Passed {
		return first
	}
	if creatable(primary) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", primary)}
	}
	if strings.TrimSpace(fallback) == "" {
		return first
	}
	second := CheckDirectoryAccess(name, fallback)
	if second.Passed || creatable(fallback) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (fallback; primary %s unavailable)", fallback, primary)}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s; fallback %s", first.Detail, second.Detail)}
}

// CheckBinary verifies that command resolves on PATH or as a path.
func CheckBinary(req Requirement) Result {
	cmd := strings.TrimSpace(req.Command)
	result := Result{Name: req.Name, Optional: req.Optional}
	if cmd == "" {
		result.Detail = "command not configured"
		return result
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", cmd)
		if req.Description != "" {
			result.Detail += "; " + req.Description
		}
		return result
	}
	result.Passed = true
	result.Detail = resolved
	return result
}

// CheckSystemDeps evaluates the grabber and assembler binaries.
func CheckSystemDeps(cfg *config.Config) []Result {
	requirements := []Requirement{
		{
			Name:        "Frame grabber",
			Command:     cfg.Capture.GrabberBinary,
			Description: "required for frame capture",
		},
		{
			Name:        "Video assembler",
			Command:     cfg.Timelapse.AssemblerBinary,
			Description: "required for lapsecam assemble",
			Optional:    true,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Timelapse.FFprobeBinary,
			Description: "required to verify assembled videos",
			Optional:    true,
		},
	}
	results := make([]Result, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, CheckBinary(req))
	}
	return results
}

// CheckStreams fails when no stream URLs are configured.
func CheckStreams(urls []string) Result {
	const name = "Streams"
	if len(urls) == 0 {
		return Result{Name: name, Detail: "no streams configured (set streams in config.toml)"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d configured", len(urls))}
}

// creatable reports whether path is missing and its nearest existing
// ancestor is writable.
func creatable(path string) bool {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return false
	}
	parent := path
	for {
		next := filepath.Dir(parent)
		if next == parent {
			return false
		}
		parent = next
		if info, err := os.Stat(parent); err == nil {
			return info.IsDir() && unix.Access(parent, unix.W_OK|unix.X_OK) == nil
		}
	}
}
