package glycin

import (
	"fmt"
	"io"
	"os"
)

// openHead reads up to max bytes from the start of the file at path,
// for MIME sniffing, without holding the file open afterward.
func openHead(path string, max int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("glycin: opening %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, max)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("glycin: reading %s: %w", path, err)
	}
	return buf[:n], nil
}
