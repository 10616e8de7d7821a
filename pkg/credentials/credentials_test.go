package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tiermem/pkg/credentials"
)

var _ = Describe("Store", func() {
	var (
		dir   string
		store *credentials.Store
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()

		var err error
		store, err = credentials.NewStore(dir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("points at credentials.toml inside the override directory", func() {
		Expect(store.Path()).To(Equal(filepath.Join(dir, "credentials.toml")))
	})

	It("reads an empty set when the file is missing", func() {
		key, err := store.Get("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(BeEmpty())

		providers, err := store.Providers()
		Expect(err).NotTo(HaveOccurred())
		Expect(providers).To(BeEmpty())
	})

	It("round-trips keys through a 0600 file", func() {
		Expect(store.Set("openai", "sk-1")).To(Succeed())
		Expect(store.Set("anthropic", "sk-2")).To(Succeed())

		key, err := store.Get("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal("sk-1"))

		providers, err := store.Providers()
		Expect(err).NotTo(HaveOccurred())
		Expect(providers).To(Equal([]string{"anthropic", "openai"}))

		info, err := os.Stat(store.Path())
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	})

	It("removes keys", func() {
		Expect(store.Set("openai", "sk-1")).To(Succeed())
		Expect(store.Remove("openai")).To(Succeed())

		key, err := store.Get("openai")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(BeEmpty())
	})

	It("reports malformed files", func() {
		Expect(os.WriteFile(store.Path(), []byte("not valid [[["), 0o600)).To(Succeed())
		_, err := store.Get("openai")
		Expect(err).To(HaveOccurred())
	})

	Describe("Resolve", func() {
		It("prefers an explicit key", func() {
			Expect(store.Set("openai", "stored")).To(Succeed())
			Expect(credentials.Resolve(store, "openai", "explicit")).To(Equal("explicit"))
		})

		It("falls back to the stored key", func() {
			Expect(store.Set("openai", "stored")).To(Succeed())
			Expect(credentials.Resolve(store, "openai", "")).To(Equal("stored"))
		})

		It("falls back to the environment", func() {
			GinkgoT().Setenv("ANTHROPIC_API_KEY", "from-env")
			Expect(credentials.Resolve(store, "anthropic", "")).To(Equal("from-env"))
			Expect(credentials.Resolve(nil, "anthropic", "")).To(Equal("from-env"))
		})

		It("returns nothing for keyless providers", func() {
			Expect(credentials.Resolve(store, "ollama", "")).To(BeEmpty())
		})
	})
})

var _ = Describe("providers", func() {
	It("knows which providers take keys", func() {
		Expect(credentials.Supported()).To(Equal([]string{"anthropic", "openai"}))
		Expect(credentials.IsSupported("openai")).To(BeTrue())
		Expect(credentials.IsSupported("ollama")).To(BeFalse())
		Expect(credentials.EnvVar("openai")).To(Equal("OPENAI_API_KEY"))
	})
})
