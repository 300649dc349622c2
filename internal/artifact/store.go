package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrChecksumMismatch is returned when an artifact file no longer matches the
// checksum recorded at publish time.
var ErrChecksumMismatch = fmt.Errorf("artifact checksum mismatch")

// Store keeps artifacts as files under Dir/<model_key>/.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = "models"
	}
	return &Store{Dir: dir}
}

func (s *Store) pathFor(key string, version int, id uuid.UUID) string {
	return filepath.Join(s.Dir, key, fmt.Sprintf("v%06d-%s.gob", version, id.String()[:8]))
}

// Write encodes a and moves it into place atomically. Readers never observe a
// partially written file.
func (s *Store) Write(a *Artifact, id uuid.UUID) (path, checksum string, err error) {
	raw, err := a.Encode()
	if err != nil {
		return "", "", err
	}
	path = s.pathFor(a.ModelKey, a.Version, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", "", fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return "", "", fmt.Errorf("write artifact: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", "", fmt.Errorf("sync artifact: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", "", fmt.Errorf("close artifact: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return "", "", fmt.Errorf("rename artifact: %w", err)
	}
	sum := sha256.Sum256(raw)
	return path, hex.EncodeToString(sum[:]), nil
}

// Read loads the artifact at path and verifies it against checksum.
func (s *Store) Read(path, checksum string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	sum := sha256.Sum256(raw)
	if checksum != "" && hex.EncodeToString(sum[:]) != checksum {
		return nil, fmt.Errorf("%s: %w", path, ErrChecksumMismatch)
	}
	return Decode(raw)
}

func (s *Store) Remove(path string) {
	_ = os.Remove(path)
}
