package helper

import (
	"os"
	"path/filepath"

	"github.com/amoylab/oscbridge/internal/common/cnst"
)

// GetPIDPath resolves where the PID file lives. An absolute filename is used
// as is. A relative one resolves against the working directory when its
// parent directory exists there; otherwise the file's base name is placed in
// AppConfigDir. An empty filename means the default oscbridge.pid in
// AppConfigDir.
func GetPIDPath(filename string) string {
	if filename == "" {
		return filepath.Join(AppConfigDir(), cnst.BridgePID)
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	if p, ok := pidInWorkDir(filename); ok {
		return p
	}
	return filepath.Join(AppConfigDir(), filepath.Base(filename))
}

func pidInWorkDir(filename string) (string, bool) {
	wd, err := os.Getwd()
	if err != nil || wd == "" {
		return "", false
	}
	p := filepath.Join(wd, filename)
	if info, err := os.Stat(filepath.Dir(p)); err != nil || !info.IsDir() {
		return "", false
	}
	return p, true
}
