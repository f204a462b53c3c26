package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

func GetUniqSubDir(parentPath string) (path string, err error) {
	path = filepath.Join(parentPath, uuid.NewString())
	err = os.Mkdir(path, os.ModePerm)
	return
}

func GetFilenameWithoutExt(path string) (name string) {
	name = filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(path))
	return
}

// AtomicWriteFile writes data to a sibling temp file and renames it into
// place, so a failed write never leaves a partial file at path.
func AtomicWriteFile(path string, data []byte) (err error) {
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err = os.WriteFile(tmp, data, os.ModePerm); err != nil {
		return
	}
	if err = os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
	}
	return
}
