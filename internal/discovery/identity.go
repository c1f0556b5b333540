package discovery

// Identity names the installation method a binary was found through. The
// set of identities is closed: only the package-level values below exist.
type Identity struct {
	name  string
	label string
	// packaged is set for identities whose binary ships inside an npm package.
	packaged bool
}

var (
	Settings       = Identity{name: "settings", label: "configured path"}
	PackageManager = Identity{name: "package-manager", label: "node_modules", packaged: true}
	PlugAndPlay    = Identity{name: "plug-and-play", label: "Yarn Plug'n'Play", packaged: true}
	Path           = Identity{name: "path", label: "PATH"}
	Download       = Identity{name: "download", label: "downloaded binary"}
)

// Identities lists every identity in local resolution order.
func Identities() []Identity {
	return []Identity{Settings, PackageManager, PlugAndPlay, Path, Download}
}

// String returns the machine name, for example "package-manager".
func (i Identity) String() string {
	return i.name
}

// Label is the human-readable source description.
func (i Identity) Label() string {
	return i.label
}

// Packaged reports whether binaries found this way come from an npm package.
func (i Identity) Packaged() bool {
	return i.packaged
}

// MarshalText renders the identity by name in JSON and YAML output.
func (i Identity) MarshalText() ([]byte, error) {
	return []byte(i.name), nil
}
