package version

var (
	// semver and revision are injected with -ldflags when a release is tagged
	semver   = "0.1.0"
	revision = "unknown"
)

// Get return the version of the node binary
func Get() string {
	return semver
}

func Commit() string {
	return revision
}
