// Package keyring remembers server passwords.
// It uses the system keyring when available, falling back to an
// encrypted local file when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/yllada/voicelink/common"
)

const (
	// serviceName is the identifier used in the system keyring.
	serviceName = "voicelink"
	// probeKey is written and removed to detect a working system keyring.
	probeKey = "voicelink-probe"
)

// ErrNotFound is returned when no password is stored under a key.
var ErrNotFound = common.ErrCredentialsNotFound

// Backend names the storage a Store uses.
type Backend string

const (
	BackendSystem Backend = "system keyring"
	BackendFile   Backend = "encrypted file"
)

// Options configures a Store.
type Options struct {
	// Service is the system keyring service name.
	Service string
	// FilePath is the encrypted fallback file. Defaults to
	// ~/.config/voicelink/.credentials.
	FilePath string
	// ForceFile skips the system keyring.
	ForceFile bool
}

// Store keeps passwords keyed by "user@host:port". It implements
// common.CredentialStore and is safe for concurrent use.
type Store struct {
	service string

	mu      sync.RWMutex
	useFile bool
	file    string
	key     []byte
	local   map[string]string
}

var _ common.CredentialStore = (*Store)(nil)

// New opens a store, probing the system keyring first.
func New(opts Options) (*Store, error) {
	if opts.Service == "" {
		opts.Service = serviceName
	}
	if opts.FilePath == "" {
		dir, err := common.GetConfigDir()
		if err != nil {
			return nil, err
		}
		opts.FilePath = filepath.Join(dir, common.CredentialsFileName)
	}

	s := &Store{service: opts.Service, file: opts.FilePath}
	if !opts.ForceFile && s.probeSystem() {
		return s, nil
	}
	if err := s.initFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) probeSystem() bool {
	if err := keyring.Set(s.service, probeKey, "probe"); err != nil {
		common.LogDebug("System keyring unavailable: %v", err)
		return false
	}
	keyring.Delete(s.service, probeKey)
	return true
}

// initFile switches the store to the encrypted file and loads it.
func (s *Store) initFile() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0700); err != nil {
		return common.WrapError(err, "failed to create credentials directory")
	}
	key, err := deriveKey(s.file)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.useFile = true
	s.key = key
	s.local = make(map[string]string)
	s.loadLocked()
	return nil
}

// Backend reports which storage the store uses.
func (s *Store) Backend() Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.useFile {
		return BackendFile
	}
	return BackendSystem
}

// deriveKey derives the file encryption key from machine-specific data.
func deriveKey(file string) ([]byte, error) {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%d", getMachineID(), hostname, os.Getuid())
	salt := sha256.Sum256([]byte(common.AppID))

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), salt[:], []byte("credentials:"+filepath.Base(file)))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}
	return key, nil
}

func getMachineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return "default-machine-id"
}

func (s *Store) loadLocked() {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return
	}
	decrypted, err := decrypt(s.key, data)
	if err != nil {
		common.LogWarn("Ignoring unreadable credentials file: %v", err)
		return
	}
	json.Unmarshal(decrypted, &s.local)
}

func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.local)
	if err != nil {
		return err
	}
	encrypted, err := encrypt(s.key, data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.file, encrypted, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}
	return nil
}

func encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", common.ErrDecryption)
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plaintext, nil
}

// Store saves a password under key.
func (s *Store) Store(key, password string) error {
	if key == "" {
		return errors.New("credential key cannot be empty")
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	if s.Backend() == BackendSystem {
		err := keyring.Set(s.service, key, password)
		if err == nil {
			return nil
		}
		common.LogWarn("System keyring write failed, using encrypted file: %v", err)
		if err := s.initFile(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[key] = password
	return s.saveLocked()
}

// Get retrieves the password saved under key.
func (s *Store) Get(key string) (string, error) {
	if key == "" {
		return "", errors.New("credential key cannot be empty")
	}

	if s.Backend() == BackendSystem {
		password, err := keyring.Get(s.service, key)
		if err == nil {
			return password, nil
		}
		if !errors.Is(err, keyring.ErrNotFound) {
			common.LogDebug("System keyring read failed: %v", err)
		}
		return "", ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	password, exists := s.local[key]
	if !exists {
		return "", ErrNotFound
	}
	return password, nil
}

// Delete removes the password saved under key.
func (s *Store) Delete(key string) error {
	if key == "" {
		return errors.New("credential key cannot be empty")
	}

	if s.Backend() == BackendSystem {
		err := keyring.Delete(s.service, key)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.local, key)
	return s.saveLocked()
}

// Exists checks if a password is saved under key.
func (s *Store) Exists(key string) bool {
	_, err := s.Get(key)
	return err == nil
}
