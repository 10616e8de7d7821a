package utils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tiermem/pkg/utils"
)

var _ = Describe("BuildInfo", func() {
	It("prints every build field", func() {
		DeferCleanup(func(v, s, b string) {
			utils.Version, utils.Sha, utils.Buildtime = v, s, b
		}, utils.Version, utils.Sha, utils.Buildtime)

		utils.Version, utils.Sha, utils.Buildtime = "v0.3.0", "abc123", "2026-10-01"
		Expect(utils.BuildInfo()).To(Equal("Version: v0.3.0\nSha: abc123\nBuilt at: 2026-10-01\n"))
	})
})
