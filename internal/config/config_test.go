package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/operator-framework/cpkernel/internal/config"
	"github.com/operator-framework/cpkernel/pkg/cp"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Config", func() {
	It("should return the defaults without a file", func() {
		c, err := config.Load("")
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Solver).To(Equal(cp.DefaultParameters()))
		Expect(c.Search.Limits()).To(BeZero())
	})

	It("should overlay the file on the defaults", func() {
		path := filepath.Join(GinkgoT().TempDir(), "cpkernel.yaml")
		Expect(os.WriteFile(path, []byte(`
solver:
  trailCompression: s2
  logLevel: debug
search:
  solutions: 3
  time: 1m30s
metrics:
  address: ":9090"
`), 0o600)).To(Succeed())

		c, err := config.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Solver.TrailCompression).To(Equal("s2"))
		Expect(c.Solver.LogLevel).To(Equal("debug"))
		Expect(c.Solver.TrailBlockSize).To(Equal(cp.DefaultParameters().TrailBlockSize))
		Expect(c.Search.Solutions).To(BeEquivalentTo(3))
		Expect(c.Search.Time).To(Equal(90 * time.Second))
		Expect(c.Metrics.Address).To(Equal(":9090"))
	})

	It("should accept an empty document", func() {
		c, err := config.Parse(strings.NewReader(""))
		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(Equal(config.Default()))
	})

	It("should reject unknown fields", func() {
		_, err := config.Parse(strings.NewReader("solver:\n  blockSize: 3\n"))
		Expect(err).To(HaveOccurred())
	})

	It("should report every invalid field", func() {
		_, err := config.Parse(strings.NewReader(`
solver:
  trailBlockSize: -1
  trailCompression: zip
search:
  branches: -2
`))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("trailBlockSize"))
		Expect(err.Error()).To(ContainSubstring("zip"))
		Expect(err.Error()).To(ContainSubstring("search.branches"))
	})

	It("should fail on a missing file", func() {
		_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(MatchError(ContainSubstring("error reading config file")))
	})
})
