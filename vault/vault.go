package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for deriving the symmetric key from the master secret.
// The salt is fixed: the master secret is a single process-wide value, not a
// per-user password, so there is nothing to salt per-entry.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	keyLength    = 32
	keyDeriveSalt = "esim-gateway-vault"
)

var (
	// ErrEncryption indicates the plaintext could not be encrypted
	ErrEncryption = errors.New("encryption failed")
	// ErrDecryption indicates the ciphertext blob is malformed or was not
	// produced with this vault's master secret
	ErrDecryption = errors.New("decryption failed")
)

// Vault encrypts and decrypts tenant upstream passwords with AES-256-CBC.
// The key is derived once from the master secret and cached for the life of
// the process. Ciphertext is encoded as "<hex-iv>:<hex-ciphertext>".
type Vault struct {
	masterSecret string

	deriveOnce sync.Once
	key        []byte
	deriveErr  error
}

// New creates a Vault for the given master secret. Key derivation is deferred
// until the first Encrypt/Decrypt call.
func New(masterSecret string) *Vault {
	return &Vault{masterSecret: masterSecret}
}

// Encrypt encrypts a plaintext password and returns the encoded blob.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.Wrap(ErrEncryption, "[Vault Encrypt] empty plaintext")
	}

	key, err := v.deriveKey()
	if err != nil {
		return "", errors.Wrap(err, "[Vault Encrypt] key derivation")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(ErrEncryption, err.Error())
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", errors.Wrap(ErrEncryption, "[Vault Encrypt] iv generation")
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. It fails with ErrDecryption if the blob is missing
// the IV delimiter, is not valid hex, or was built with a different master key.
func (v *Vault) Decrypt(blob string) (string, error) {
	ivHex, cipherHex, found := strings.Cut(blob, ":")
	if !found {
		return "", errors.Wrap(ErrDecryption, "[Vault Decrypt] missing iv delimiter")
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", errors.Wrap(ErrDecryption, "[Vault Decrypt] malformed iv")
	}

	ciphertext, err := hex.DecodeString(cipherHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.Wrap(ErrDecryption, "[Vault Decrypt] malformed ciphertext")
	}

	key, err := v.deriveKey()
	if err != nil {
		return "", errors.Wrap(err, "[Vault Decrypt] key derivation")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(ErrDecryption, err.Error())
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", errors.Wrap(ErrDecryption, "[Vault Decrypt] bad padding")
	}

	// Credentials are always UTF-8; anything else means the wrong key
	// happened to produce a valid-looking pad.
	if !utf8.Valid(unpadded) {
		return "", errors.Wrap(ErrDecryption, "[Vault Decrypt] wrong key")
	}

	return string(unpadded), nil
}

// deriveKey derives the AES key from the master secret, once per process.
func (v *Vault) deriveKey() ([]byte, error) {
	v.deriveOnce.Do(func() {
		if v.masterSecret == "" {
			v.deriveErr = errors.New("[Vault deriveKey] master secret is required")
			return
		}
		v.key, v.deriveErr = scrypt.Key([]byte(v.masterSecret), []byte(keyDeriveSalt), scryptN, scryptR, scryptP, keyLength)
	})
	return v.key, v.deriveErr
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("invalid pad length")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-padLen], nil
}
