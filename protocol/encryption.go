package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// SessionCipher holds the AES-256-CTR stream state for one connection
// once encryption has been negotiated. Outbound and inbound directions
// keep independent stream positions; both peers derive the same key, so
// one side's send stream lines up with the other side's receive stream.
//
// The cipher is owned by its connection and must not be shared: CTR
// stream state advances with every call.
type SessionCipher struct {
	send cipher.Stream
	recv cipher.Stream
}

// NewSessionCipher creates a SessionCipher from the 32-byte session key
// negotiated during the handshake. The counter IV is derived from the
// first block of the key, matching the peer's derivation.
func NewSessionCipher(key [32]byte) (*SessionCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create session cipher: %w", err)
	}
	iv := key[:aes.BlockSize]
	return &SessionCipher{
		send: cipher.NewCTR(block, iv),
		recv: cipher.NewCTR(block, iv),
	}, nil
}

// Encrypt encrypts b in place using the outbound stream.
func (c *SessionCipher) Encrypt(b []byte) {
	c.send.XORKeyStream(b, b)
}

// Decrypt decrypts b in place using the inbound stream.
func (c *SessionCipher) Decrypt(b []byte) {
	c.recv.XORKeyStream(b, b)
}
