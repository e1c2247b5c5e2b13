package outdir

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"anchors/internal/document"
)

func expandedDocs(t *testing.T) map[string]*yaml.Node {
	t.Helper()
	docs := map[string]*yaml.Node{}
	for name, src := range map[string]string{
		"ci":      "name: ci\non: [push]\njobs:\n  build:\n    steps:\n      - uses: actions/checkout@v4\n",
		"release": "name: release\non:\n  push:\n    tags: ['v*']\n",
	} {
		node, err := document.Parse([]byte(src))
		require.NoError(t, err)
		docs[name] = node
	}
	return docs
}

func emitted(t *testing.T) (*Dir, map[string]*yaml.Node) {
	t.Helper()
	dir := New(filepath.Join(t.TempDir(), ".github", "workflows"), "")
	docs := expandedDocs(t)
	require.NoError(t, dir.Emit(docs, nil))
	return dir, docs
}

func TestNew_Defaults(t *testing.T) {
	dir := New("", "")

	assert.Equal(t, DefaultPath, dir.Path())
	assert.Equal(t, filepath.Join(DefaultPath, "ci.yaml"), dir.FilePath("ci"))
}

func TestVerify(t *testing.T) {
	tmpDir := t.TempDir()

	assert.NoError(t, New(tmpDir, "").Verify())

	err := New(filepath.Join(tmpDir, "missing"), "").Verify()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRepoRoot)
	assert.Contains(t, err.Error(), "directory missing")

	file := filepath.Join(tmpDir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.ErrorIs(t, New(file, "").Verify(), ErrNotRepoRoot)
}

func TestEmit_ThenCheckSucceeds(t *testing.T) {
	dir, docs := emitted(t)

	assert.FileExists(t, dir.FilePath("ci"))
	assert.FileExists(t, dir.FilePath("release"))
	assert.NoError(t, dir.Check(docs))
}

func TestEmit_RemovesStaleFiles(t *testing.T) {
	dir, docs := emitted(t)
	stale := filepath.Join(dir.Path(), "old.yaml")
	require.NoError(t, os.WriteFile(stale, []byte("name: old\n"), 0644))

	require.NoError(t, dir.Emit(docs, nil))

	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, dir.FilePath("ci")+".tmp")
	assert.NoError(t, dir.Check(docs))
}

func TestEmit_NotifiesInOrder(t *testing.T) {
	dir := New(filepath.Join(t.TempDir(), "out"), "")
	var names []string

	err := dir.Emit(expandedDocs(t), func(name string) {
		names = append(names, name)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"ci", "release"}, names)
}

func TestCheck_Drift(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *testing.T, dir *Dir)
		wantErr  error
		wantPath string
	}{
		{
			name: "outdated content",
			mutate: func(t *testing.T, dir *Dir) {
				require.NoError(t, os.WriteFile(dir.FilePath("ci"), []byte("name: cj\non: [push]\n"), 0644))
			},
			wantErr:  ErrOutdatedOutput,
			wantPath: "ci.yaml",
		},
		{
			name: "missing file",
			mutate: func(t *testing.T, dir *Dir) {
				require.NoError(t, os.Remove(dir.FilePath("release")))
			},
			wantErr:  ErrMissingOutput,
			wantPath: "release.yaml",
		},
		{
			name: "extra file",
			mutate: func(t *testing.T, dir *Dir) {
				require.NoError(t, os.WriteFile(filepath.Join(dir.Path(), "README.md"), []byte("hi"), 0644))
			},
			wantErr:  ErrUnexpectedOutput,
			wantPath: "README.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, docs := emitted(t)
			tt.mutate(t, dir)

			err := dir.Check(docs)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var drift *DriftError
			require.True(t, errors.As(err, &drift))
			assert.Equal(t, tt.wantPath, filepath.Base(drift.Path))
		})
	}
}

func TestCheck_FormattingChangesAreNotDrift(t *testing.T) {
	dir, docs := emitted(t)
	reformatted := "on: [push]\njobs: {build: {steps: [{uses: \"actions/checkout@v4\"}]}}\nname: 'ci'\n"
	require.NoError(t, os.WriteFile(dir.FilePath("ci"), []byte(reformatted), 0644))

	assert.NoError(t, dir.Check(docs))
}

func TestCheck_InvalidYAML(t *testing.T) {
	dir, docs := emitted(t)
	require.NoError(t, os.WriteFile(dir.FilePath("ci"), []byte("jobs: [\n"), 0644))

	err := dir.Check(docs)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not valid YAML")
}

func TestCheck_MultipleDocuments(t *testing.T) {
	dir, docs := emitted(t)
	require.NoError(t, os.WriteFile(dir.FilePath("release"),
		[]byte("name: release\non:\n  push:\n    tags: ['v*']\n---\nname: extra\n"), 0644))

	err := dir.Check(docs)

	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrMultipleDocuments)
	assert.Contains(t, err.Error(), "release.yaml is not valid YAML")
}

func TestEmit_ThenCheckComplexKeys(t *testing.T) {
	dir := New(filepath.Join(t.TempDir(), "workflows"), "")
	node, err := document.Parse([]byte("? [a, b]\n: 1\n"))
	require.NoError(t, err)
	docs := map[string]*yaml.Node{"ci": node}

	require.NoError(t, dir.Emit(docs, nil))

	assert.NoError(t, dir.Check(docs))
}

func TestCheck_MessageFormat(t *testing.T) {
	dir, docs := emitted(t)
	require.NoError(t, os.Remove(dir.FilePath("ci")))

	err := dir.Check(docs)

	require.Error(t, err)
	assert.Equal(t, "file "+dir.FilePath("ci")+" not exists", err.Error())
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "ci", fileStem("ci.yaml"))
	assert.Equal(t, "a.b", fileStem("a.b.yaml"))
	assert.Equal(t, "README", fileStem("README"))
	assert.Equal(t, ".keep", fileStem(".keep"))
}
