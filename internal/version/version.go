// Package version carries the simsearch build identity, stamped at build
// time via -ldflags "-X".
package version

var (
	// Version is the release tag or "dev" for unstamped builds.
	Version = "dev"
	// Commit is the git revision the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)
