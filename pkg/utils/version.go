// Package utils holds build metadata and the shared test doubles under
// utils/test.
package utils

import "fmt"

// Set at link time with -ldflags "-X github.com/papercomputeco/tiermem/pkg/utils.Version=...".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// BuildInfo renders the build metadata as the version command prints it.
func BuildInfo() string {
	return fmt.Sprintf("Version: %s\nSha: %s\nBuilt at: %s\n", Version, Sha, Buildtime)
}
