package credential

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
)

// ErrUnavailable is returned when the underlying storage cannot be used.
var ErrUnavailable = errors.New("credential storage unavailable")

// FileStore keeps the token in a file only readable by its owner.
type FileStore struct {
	path   string
	logger core.Logger
}

var _ session.CredentialStore = (*FileStore)(nil)

func NewFileStore(path string, logger core.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return session.ErrEmptyToken
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "creating credentials directory")
	}

	// write then rename, so that a concurrent Load never sees a partial token
	tmp, err := ioutil.TempFile(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, "creating credentials file")
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err = tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing credentials file")
	}
	if err = tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod credentials file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing credentials file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "renaming credentials file")
}

func (s *FileStore) Load() (string, bool) {
	data, err := ioutil.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) && s.logger != nil {
			s.logger.Warn("reading credentials file", errors.Wrap(err, s.path))
		}
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing credentials file")
	}
	return nil
}
