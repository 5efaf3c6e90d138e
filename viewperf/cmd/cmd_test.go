package cmd

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const sampleScript = `# one measure pass
1 start DecorView#1
1 begin-root measure
1 begin DecorView#1 measure
1 begin Button#2:ok measure
1 end Button#2:ok measure
1 end DecorView#1 measure
1 end-root measure
1 stop
`

var _ = Describe("viewperf", func() {
	var (
		dir    string
		script string
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	)

	execute := func(args ...string) error {
		root := newRootCmd()
		root.SetOut(stdout)
		root.SetErr(stderr)
		root.SetArgs(args)

		return root.Execute()
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		script = filepath.Join(dir, "pass.txt")
		Expect(os.WriteFile(script, []byte(sampleScript), 0o644)).To(Succeed())

		stdout = new(bytes.Buffer)
		stderr = new(bytes.Buffer)
	})

	It("should log the traversal tree", func() {
		err := execute("replay", script)

		Expect(err).ToNot(HaveOccurred())
		Expect(stderr.String()).To(ContainSubstring("traversal 1 completed thread=1"))
	})

	It("should write traversals as json", func() {
		err := execute("replay", "--format", "json", script)

		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(HavePrefix(`{"id":1,"thread":1,"status":"completed"`))
	})

	It("should write traversals to a json file", func() {
		out := filepath.Join(dir, "traversals.jsonl")

		err := execute("replay", "--format", "none", "--json-out="+out, script)

		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(BeEmpty())

		content, err := os.ReadFile(out)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(content)).To(HavePrefix(`{"id":1,"thread":1,"status":"completed"`))
	})

	It("should print a step summary", func() {
		err := execute("replay", "--format", "none", "--summary", script)

		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(ContainSubstring("traversals: completed=1 aborted=0"))
		Expect(stdout.String()).To(ContainSubstring("root-measure"))
		Expect(stderr.String()).To(BeEmpty())
	})

	It("should replay threads in parallel", func() {
		err := execute("replay", "--format", "none", "--summary", "--parallel", script)

		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(ContainSubstring("traversals: completed=1 aborted=0"))
	})

	It("should reject an invalid format", func() {
		err := execute("replay", "--format", "xml", script)

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("report.format"))
	})

	It("should report the line of a malformed event", func() {
		bad := filepath.Join(dir, "bad.txt")
		Expect(os.WriteFile(bad, []byte("1 start DecorView#1\n1 jump\n"), 0o644)).
			To(Succeed())

		err := execute("replay", bad)

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("line 2"))
	})

	It("should inspect a recording", func() {
		db := filepath.Join(dir, "rec")

		err := execute("replay", "--format", "none", "--record", db, script)
		Expect(err).ToNot(HaveOccurred())

		stdout.Reset()
		err = execute("inspect", "--plot=false", db+".sqlite3")

		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(ContainSubstring("Slowest traversals (1 recorded)"))
		Expect(stdout.String()).To(ContainSubstring("root-measure"))
		Expect(stdout.String()).To(ContainSubstring("DecorView#1"))
	})
})
