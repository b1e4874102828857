package encoding

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadAndUnmarshal provides the underlying loading and unmarshaling
// functionality for the encoding package. It reads the data at the specified
// path and then invokes the specified unmarshaling callback (usually a
// closure) to decode the data.
func LoadAndUnmarshal(path string, unmarshal func([]byte) error) error {
	// Grab the file contents.
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("unable to load file: %w", err)
	}

	// Perform the unmarshaling.
	if err := unmarshal(data); err != nil {
		return fmt.Errorf("unable to unmarshal data: %w", err)
	}

	// Success.
	return nil
}

// MarshalAndSave provides the underlying marshaling and saving functionality
// for the encoding package. It invokes the specified marshaling callback
// (usually a closure) and writes the result atomically to the specified
// path. The data is saved with read/write permissions for the user only.
func MarshalAndSave(path string, marshal func() ([]byte, error)) error {
	// Marshal the message.
	data, err := marshal()
	if err != nil {
		return fmt.Errorf("unable to marshal message: %w", err)
	}

	// Write the file atomically with secure file permissions.
	if err := writeFileAtomic(path, data, 0600); err != nil {
		return fmt.Errorf("unable to write message data: %w", err)
	}

	// Success.
	return nil
}

// writeFileAtomic writes data to a temporary file in the same directory as
// path and then renames it into place, so that readers never observe a
// partially written file. The rename is preceded by an fsync of the
// temporary file's contents.
func writeFileAtomic(path string, data []byte, permissions os.FileMode) error {
	// Create the temporary file in the target directory so that the
	// subsequent rename is guaranteed to stay on the same filesystem.
	directory := filepath.Dir(path)
	temporary, err := os.CreateTemp(directory, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return fmt.Errorf("unable to create temporary file: %w", err)
	}
	temporaryPath := temporary.Name()

	// Ensure that the temporary file is removed if we don't reach the
	// rename.
	succeeded := false
	defer func() {
		if !succeeded {
			temporary.Close()
			os.Remove(temporaryPath)
		}
	}()

	// Set the desired permissions before writing any data.
	if err := temporary.Chmod(permissions); err != nil {
		return fmt.Errorf("unable to set temporary file permissions: %w", err)
	}

	// Write the data.
	if _, err := temporary.Write(data); err != nil {
		return fmt.Errorf("unable to write temporary file: %w", err)
	}

	// Force the data to durable storage before the rename is visible.
	if err := temporary.Sync(); err != nil {
		return fmt.Errorf("unable to sync temporary file: %w", err)
	}

	// Close before renaming (required on Windows, harmless elsewhere).
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("unable to close temporary file: %w", err)
	}

	// Rename into place.
	if err := os.Rename(temporaryPath, path); err != nil {
		return fmt.Errorf("unable to rename temporary file: %w", err)
	}

	// Mark as succeeded so the deferred cleanup doesn't remove the file
	// we just renamed into place.
	succeeded = true
	return nil
}
