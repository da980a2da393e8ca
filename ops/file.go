package ops

import (
	"io"
	"os"
	"time"

	"emperror.dev/errors"

	"github.com/absfs/proxyfs/store"
)

// IsDir reports whether name exists and is a directory.
func IsDir(fsys store.FS, name string) (bool, error) {
	info, err := Info(fsys, name)
	if err != nil || info == nil {
		return false, err
	}
	return info.IsDir(), nil
}

// IsFile reports whether name exists and is not a directory.
func IsFile(fsys store.FS, name string) (bool, error) {
	info, err := Info(fsys, name)
	if err != nil || info == nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// IsEmpty reports whether the directory name has no children.
func IsEmpty(fsys store.FS, name string) (bool, error) {
	names, err := fsys.ReadDir(name)
	if err != nil {
		return false, err
	}
	return len(names) == 0, nil
}

// ReadFile returns the whole content of name.
func ReadFile(fsys store.FS, name string) ([]byte, error) {
	f, err := fsys.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFile replaces the content of name with data, creating it if needed.
func WriteFile(fsys store.FS, name string, data []byte) error {
	return writeFile(fsys, name, data, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

// AppendFile adds data at the end of name, creating it if needed.
func AppendFile(fsys store.FS, name string, data []byte) error {
	return writeFile(fsys, name, data, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func writeFile(fsys store.FS, name string, data []byte, flag int) error {
	f, err := fsys.OpenFile(name, flag, store.DefaultFilePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot write %s", name)
	}
	return f.Close()
}

// Touch creates name empty, or updates its times if it exists.
func Touch(fsys store.FS, name string) error {
	exists, err := fsys.Exists(name)
	if err != nil {
		return err
	}
	if exists {
		now := time.Now()
		return fsys.SetInfo(name, store.TimeAttrs(now, now))
	}
	f, err := fsys.OpenFile(name, os.O_WRONLY|os.O_CREATE, store.DefaultFilePerm)
	if err != nil {
		return err
	}
	return f.Close()
}
