package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"anchors/internal/config"
	"anchors/internal/output"
	"anchors/internal/testutil"
)

// testRepo is a repository layout with a templates directory and an output
// directory, rooted in a temporary directory.
type testRepo struct {
	Root      string
	Templates string
	Output    string
}

// createTestRepo lays out templates and blocks and an empty
// .github/workflows directory.
func createTestRepo(t *testing.T) *testRepo {
	t.Helper()

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"templates/ci.yaml": `name: ci
on:
  push:
    branches: [main]
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
      - $include: checkout
      - $include: toolchain
      - run: make test
`,
		"templates/release.yaml": `name: release
on:
  push:
    tags: ['v*']
jobs:
  publish:
    runs-on: ubuntu-latest
    steps:
      - $include: checkout
      - run: make release
`,
		"templates/blocks/checkout.yaml": "uses: actions/checkout@v4\nwith:\n  fetch-depth: 0\n",
		"templates/blocks/toolchain.yaml": "uses: actions/setup-go@v5\nwith:\n  go-version: stable\n",
	})

	out := filepath.Join(root, ".github", "workflows")
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatalf("failed to create output directory: %v", err)
	}

	return &testRepo{
		Root:      root,
		Templates: filepath.Join(root, "templates"),
		Output:    out,
	}
}

// newTestApp creates an App whose printer writes into the returned buffer.
func newTestApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return &App{
		Config:  cfg,
		Printer: output.NewPrinterWithWriter(buf),
		Logger:  testutil.NewTestLogger(t),
	}, buf
}

// newTestCommand builds the root command with output captured.
func newTestCommand(app *App, args ...string) (*cobra.Command, *bytes.Buffer) {
	cmd := NewRootCommand(app)
	outBuf := &bytes.Buffer{}
	cmd.SetOut(outBuf)
	cmd.SetErr(outBuf)
	cmd.SetArgs(args)
	return cmd, outBuf
}
