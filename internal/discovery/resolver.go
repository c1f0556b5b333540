package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"pglauncher/internal/debug"
	"pglauncher/internal/probe"
)

// ModuleResolver resolves a package request such as
// "@scope/pkg/bin/tool" the way Node would from anchorDir. It returns the
// resolved filesystem path, or "" when the package is not installed.
type ModuleResolver interface {
	Resolve(ctx context.Context, request, anchorDir string) (string, error)
}

// NodeModulesResolver walks up from the anchor looking in node_modules
// directories.
type NodeModulesResolver struct {
	Fs afero.Fs
}

// Resolve implements ModuleResolver.
func (r NodeModulesResolver) Resolve(_ context.Context, request, anchorDir string) (string, error) {
	pkg, subpath, err := splitRequest(request)
	if err != nil {
		return "", err
	}
	dir := filepath.Clean(anchorDir)
	for {
		pkgDir := filepath.Join(dir, "node_modules", filepath.FromSlash(pkg))
		if ok, _ := afero.DirExists(r.Fs, pkgDir); ok {
			target := pkgDir
			if subpath != "" {
				target = filepath.Join(pkgDir, filepath.FromSlash(subpath))
			}
			if _, err := r.Fs.Stat(target); err == nil {
				return realPath(r.Fs, target), nil
			}
			// Node stops at the first matching package directory.
			return "", nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// realPath follows symlinks the way Node does, so package managers that
// link packages out of a store (pnpm) resolve to the store location and
// dependencies next to it become reachable.
func realPath(fs afero.Fs, path string) string {
	if _, ok := fs.(*afero.OsFs); !ok {
		return path
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		debug.Logf("resolve symlinks in %s: %v", path, err)
		return path
	}
	return resolved
}

// splitRequest separates "@scope/name/sub/path" into package and subpath.
func splitRequest(request string) (string, string, error) {
	parts := strings.Split(strings.Trim(request, "/"), "/")
	n := 1
	if strings.HasPrefix(parts[0], "@") {
		n = 2
	}
	if parts[0] == "" || len(parts) < n {
		return "", "", fmt.Errorf("invalid module request %q", request)
	}
	return strings.Join(parts[:n], "/"), strings.Join(parts[n:], "/"), nil
}

// pnpScript loads a Plug'n'Play manifest and resolves one request against
// it. Exit code 3 signals a resolution failure.
const pnpScript = `const api = require(process.argv[1]);
try {
  const resolved = api.resolveRequest(process.argv[2], process.argv[3]);
  process.stdout.write(resolved || "");
} catch (err) {
  process.stderr.write(String((err && err.message) || err));
  process.exit(3);
}`

// PnPResolver resolves requests through a Yarn Plug'n'Play manifest by
// asking node to load the manifest's resolution API.
type PnPResolver struct {
	Manifest string
	Node     string
	Runner   probe.CommandRunner
}

// Resolve implements ModuleResolver.
func (r PnPResolver) Resolve(ctx context.Context, request, anchorDir string) (string, error) {
	node := r.Node
	if node == "" {
		node = "node"
	}
	runner := r.Runner
	if runner == nil {
		runner = probe.ExecRunner{}
	}
	issuer := strings.TrimRight(anchorDir, string(os.PathSeparator)) + string(os.PathSeparator)
	out, err := runner.Run(ctx, node, "-e", pnpScript, r.Manifest, request, issuer)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return "", fmt.Errorf("pnp resolve %s via %s: %w: %s", request, r.Manifest, err, msg)
		}
		return "", fmt.Errorf("pnp resolve %s via %s: %w", request, r.Manifest, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// PnPLoader builds a resolver bound to a manifest file.
type PnPLoader func(manifest string) ModuleResolver

// NodePnPLoader returns a loader running the given node executable.
func NodePnPLoader(node string, runner probe.CommandRunner) PnPLoader {
	return func(manifest string) ModuleResolver {
		return PnPResolver{Manifest: manifest, Node: node, Runner: runner}
	}
}
