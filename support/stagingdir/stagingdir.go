// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package stagingdir builds directories in a temporary location and moves
// them into place once complete.
package stagingdir

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrFinished is returned by Commit once D has been committed or destroyed.
var ErrFinished = errors.New("staging directory is no longer active")

// D manages a staging directory.
//
// While D is active, it resides in a temporary location. Once finished, D is
// either committed, atomically moving it to its destination, or destroyed,
// deleting it along with its contents.
type D struct {
	// tempDir is the directory that holds the staging directory.
	tempDir string

	// path is the path of the staging directory. It is empty once D has been
	// committed or destroyed.
	path string
}

// New creates a new staging directory underneath of tempDir, named with the
// given prefix. If tempDir is empty, the system temporary directory is used.
func New(tempDir, prefix string) (*D, error) {
	path, err := ioutil.TempDir(tempDir, prefix)
	if err != nil {
		return nil, err
	}
	return &D{
		tempDir: tempDir,
		path:    path,
	}, nil
}

// Path joins components onto the staging directory's path.
func (sd *D) Path(first string, components ...string) string {
	if sd.path == "" {
		panic(ErrFinished)
	}
	return filepath.Join(append([]string{sd.path, first}, components...)...)
}

// Active returns true if D has not been committed or destroyed.
func (sd *D) Active() bool { return sd.path != "" }

// Destroy purges the staging directory and its contents. Destroying an
// inactive D does nothing.
func (sd *D) Destroy() error {
	if sd.path == "" {
		return nil
	}
	if err := os.RemoveAll(sd.path); err != nil {
		return err
	}
	sd.path = ""
	return nil
}

// Commit moves the staging directory to dest, replacing anything already
// there.
func (sd *D) Commit(dest string) error {
	if sd.path == "" {
		return ErrFinished
	}

	if _, err := os.Stat(dest); err == nil {
		// Move the existing entry aside first. It lands in a directory that is
		// purged in the background; if that fails it remains under the
		// temporary directory.
		killDir, err := ioutil.TempDir(sd.tempDir, "overwrite")
		if err != nil {
			return errors.Wrap(err, "create overwrite directory")
		}
		defer func() {
			go func() {
				_ = os.RemoveAll(killDir)
			}()
		}()

		if err := os.Rename(dest, filepath.Join(killDir, filepath.Base(dest))); err != nil {
			return errors.Wrapf(err, "moving existing %q aside", dest)
		}
	}

	if err := os.Rename(sd.path, dest); err != nil {
		return errors.Wrapf(err, "moving staging directory into place (%q => %q)", sd.path, dest)
	}
	sd.path = ""
	return nil
}
