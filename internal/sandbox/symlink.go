package sandbox

import "path/filepath"

// evalSymlinksBestEffort canonicalizes path, resolving every symbolic
// link component. If the path (or some ancestor) does not exist yet —
// e.g. a file about to be created — filepath.EvalSymlinks fails, so we
// fall back to Abs+Clean on the deepest existing ancestor, which is
// sufficient for Resolve's escape check since new path components
// cannot themselves be symlinks.
func evalSymlinksBestEffort(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	abs, absErr := filepath.Abs(path)
	if absErr != nil {
		return "", absErr
	}

	dir := filepath.Dir(abs)
	resolvedDir, dirErr := filepath.EvalSymlinks(dir)
	if dirErr != nil {
		// Neither the path nor its parent exists; walk up further.
		return walkUpForExisting(abs)
	}
	return filepath.Join(resolvedDir, filepath.Base(abs)), nil
}

func walkUpForExisting(abs string) (string, error) {
	dir := abs
	var tail []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			joined := resolved
			for _, t := range tail {
				joined = filepath.Join(joined, t)
			}
			return joined, nil
		}
	}
}
