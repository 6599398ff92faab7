package testutil

import (
	"os"
	"path"

	log "github.com/sirupsen/logrus"
)

// Sandbox is an object that creates a sandbox for files or directories
// that need to be created for tests. It provides utility functions for
// creating files and dirs and removes the whole sandbox with its content
// on close. Each sandbox has its own, unique directory so two sandboxes
// never interfere.
type Sandbox struct {
	BasePath string
}

// Create a new sandbox located in a temporary directory.
func NewSandbox() *Sandbox {
	dir, err := os.MkdirTemp("", "netlab_ut_*")
	if err != nil {
		log.Fatal(err)
	}
	return &Sandbox{
		BasePath: dir,
	}
}

// Close sandbox and remove all its contents.
func (sb *Sandbox) Close() {
	os.RemoveAll(sb.BasePath)
}

// Create an empty file in the sandbox together with all missing parent
// directories and return a full path to it.
func (sb *Sandbox) Join(name string) (string, error) {
	filePath := path.Join(sb.BasePath, name)

	dir := path.Dir(filePath)
	err := os.MkdirAll(dir, 0o777)
	if err != nil {
		return "", err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return filePath, nil
}

// Create indicated directory in sandbox and all parent directories
// and return a full path.
func (sb *Sandbox) JoinDir(name string) (string, error) {
	filePath := path.Join(sb.BasePath, name)

	err := os.MkdirAll(filePath, 0o777)
	if err != nil {
		return "", err
	}

	return filePath, nil
}

// Create a file with given content in the sandbox and return a full path.
func (sb *Sandbox) Write(name, content string) (string, error) {
	filePath, err := sb.Join(name)
	if err != nil {
		return "", err
	}

	err = os.WriteFile(filePath, []byte(content), 0o644)
	if err != nil {
		return "", err
	}

	return filePath, nil
}
