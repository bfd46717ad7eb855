package msgstate

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Store tracks the last published message id per destination endpoint so the
// publisher can edit in place instead of posting anew each cycle.
type Store interface {
	// Get returns the recorded id for the endpoint, or "" when none is on
	// record. Missing or unreadable state degrades to "" rather than
	// failing the cycle.
	Get(endpointURL string) (string, error)
	// Set records the id for the endpoint, replacing any prior value.
	Set(endpointURL, messageID string) error
}

// FileStore keeps one id file per destination under a data directory. Files
// are named by a stable truncated hash of the endpoint URL so distinct
// destinations never collide and the same destination resolves to the same
// file across restarts.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	return &FileStore{dir: dir}
}

// Key derives the stable state-file key for an endpoint URL.
func Key(endpointURL string) string {
	sum := sha256.Sum256([]byte(endpointURL))
	return hex.EncodeToString(sum[:])[:10]
}

func (s *FileStore) path(endpointURL string) string {
	return filepath.Join(s.dir, "last_id_"+Key(endpointURL)+".txt")
}

func (s *FileStore) Get(endpointURL string) (string, error) {
	data, err := os.ReadFile(s.path(endpointURL))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		// Unreadable state loses replace-continuity but never the cycle.
		return "", nil
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) Set(endpointURL, messageID string) error {
	id := strings.TrimSpace(messageID)
	if id == "" {
		return errors.New("msgstate: empty message id")
	}
	return errors.Wrap(atomicWrite(s.path(endpointURL), []byte(id), 0o600), "msgstate: write id")
}

func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil && !os.IsExist(err) {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Chmod(path, mode)
}
