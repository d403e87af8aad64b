package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPIDPath(t *testing.T) {
	// absolute path
	abs := "/tmp/xx.pid"
	assert.Equal(t, abs, GetPIDPath(abs))

	// empty filename => fallback under the app config dir
	assert.Equal(t, filepath.Join(AppConfigDir(), "oscbridge.pid"), GetPIDPath(""))

	// relative filename returns absolute path under cwd if parent exists
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	tmp := t.TempDir()
	_ = os.Chdir(tmp)
	got := GetPIDPath("proc.pid")
	exp, _ := filepath.EvalSymlinks(tmp)
	realGot, _ := filepath.EvalSymlinks(filepath.Dir(got))
	assert.Equal(t, exp, realGot)
	assert.Equal(t, "proc.pid", filepath.Base(got))

	// missing parent directory falls back to the base name in the app config dir
	assert.Equal(t, filepath.Join(AppConfigDir(), "proc.pid"), GetPIDPath("missing/dir/proc.pid"))

	// a file in place of the parent directory also falls back
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "blocker"), nil, 0o644))
	assert.Equal(t, filepath.Join(AppConfigDir(), "x.pid"), GetPIDPath("blocker/x.pid"))
}
