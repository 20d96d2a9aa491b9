// Package login decodes the initial connection payload into a validated
// certificate chain plus the raw client-metadata token, establishing the
// player's cryptographic identity before the session is trusted.
//
// The chain is walked in array order with an explicit trust anchor
// threaded through the loop: link 0 is checked against the self-signed
// key in its own x5u header, every later link against the
// identityPublicKey claimed by the link before it. Token signatures are
// verified for real (ES384); decoding stops at the first failure and
// never returns a partially populated request.
package login

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bedrocknet/bedrocknet/protocol"
)

// ErrChainBroken is returned when a token's signature does not verify
// under its trust anchor: the chain linkage itself is bad, as opposed to
// the payload being structurally malformed.
var ErrChainBroken = errors.New("credential chain broken")

// ConnectionRequest is the fully parsed handshake payload.
type ConnectionRequest struct {
	// Chain holds the claims of each certificate chain link, oldest
	// (root) first. The terminal link carries the extended identity data.
	Chain []jwt.MapClaims

	// RawToken holds the claims of the client metadata token, validated
	// against the chain's terminal key.
	RawToken jwt.MapClaims

	// IdentityKey is the public key claimed by the terminal chain link.
	// It keys the session's later encryption negotiation.
	IdentityKey *ecdsa.PublicKey
}

// Identity is the player identity pulled from the terminal chain link.
type Identity struct {
	XUID        string
	IdentityID  string
	DisplayName string
}

// Identity extracts the extraData identity from the terminal chain link.
// The second return is false when the chain carries no identity data,
// which a caller may treat as an unauthenticated (offline) player.
func (req *ConnectionRequest) Identity() (Identity, bool) {
	if len(req.Chain) == 0 {
		return Identity{}, false
	}
	extra, ok := req.Chain[len(req.Chain)-1]["extraData"].(map[string]any)
	if !ok {
		return Identity{}, false
	}
	ident := Identity{}
	ident.XUID, _ = extra["XUID"].(string)
	ident.IdentityID, _ = extra["identity"].(string)
	ident.DisplayName, _ = extra["displayName"].(string)
	return ident, ident.DisplayName != ""
}

// Wire layout of the handshake payload:
//
//	[overall length: varuint32]
//	[chain region length: i32 LE][chain region: JSON {"chain": [JWT, ...]}]
//	[raw token region length: i32 LE][raw token region: JWT]

// DecodeRequest parses and validates a handshake payload. Any decode,
// base64, UTF-8 or JSON-shape failure aborts the whole handshake; the
// work is CPU-bound and bounded by the region lengths already read.
func DecodeRequest(payload []byte) (*ConnectionRequest, error) {
	r := protocol.NewReader(payload)

	// Overall length is redundant with the region lengths that follow.
	if _, err := r.VarUint32(); err != nil {
		return nil, fmt.Errorf("handshake length: %w", err)
	}

	chainRegion, err := readRegion(r, "certificate chain")
	if err != nil {
		return nil, err
	}
	tokens, err := splitChain(chainRegion)
	if err != nil {
		return nil, err
	}

	var (
		chain  = make([]jwt.MapClaims, 0, len(tokens))
		anchor *ecdsa.PublicKey
	)
	for i, token := range tokens {
		claims, err := verifyToken(token, anchor)
		if err != nil {
			switch {
			case errors.Is(err, ErrChainBroken),
				errors.Is(err, protocol.ErrFormatMismatch),
				errors.Is(err, protocol.ErrTruncated):
				return nil, fmt.Errorf("chain link %d: %w", i, err)
			default:
				return nil, fmt.Errorf("chain link %d: %v: %w", i, err, protocol.ErrFormatMismatch)
			}
		}

		// Every link must claim the key anchoring the next step; the
		// terminal link's claim anchors the raw token below.
		next, ok := claims["identityPublicKey"].(string)
		if !ok {
			return nil, fmt.Errorf("chain link %d missing identityPublicKey claim: %w", i, protocol.ErrFormatMismatch)
		}
		if anchor, err = parsePublicKey(next); err != nil {
			return nil, fmt.Errorf("chain link %d identityPublicKey: %w", i, err)
		}
		chain = append(chain, claims)
	}

	rawRegion, err := readRegion(r, "raw token")
	if err != nil {
		return nil, err
	}
	rawClaims, err := verifyToken(string(rawRegion), anchor)
	if err != nil {
		switch {
		case errors.Is(err, ErrChainBroken), errors.Is(err, protocol.ErrFormatMismatch):
			return nil, fmt.Errorf("raw token: %w", err)
		default:
			return nil, fmt.Errorf("raw token: %v: %w", err, protocol.ErrFormatMismatch)
		}
	}

	return &ConnectionRequest{
		Chain:       chain,
		RawToken:    rawClaims,
		IdentityKey: anchor,
	}, nil
}

// readRegion reads one i32-LE-length-prefixed UTF-8 region.
func readRegion(r *protocol.Reader, name string) ([]byte, error) {
	n, err := r.Int32()
	if err != nil {
		return nil, fmt.Errorf("%s region length: %w", name, err)
	}
	if n < 0 {
		return nil, fmt.Errorf("%s region length %d: %w", name, n, protocol.ErrFormatMismatch)
	}
	region, err := r.Bytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("%s region: %w", name, err)
	}
	if !utf8.Valid(region) {
		return nil, fmt.Errorf("%s region is not valid UTF-8: %w", name, protocol.ErrFormatMismatch)
	}
	return region, nil
}

// splitChain pulls the JWT strings out of the chain region's JSON
// envelope, which must be an object holding a "chain" array of strings.
func splitChain(region []byte) ([]string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(region, &envelope); err != nil {
		return nil, fmt.Errorf("certificate chain JSON: %v: %w", err, protocol.ErrFormatMismatch)
	}
	raw, ok := envelope["chain"]
	if !ok {
		return nil, fmt.Errorf(`certificate chain missing "chain" array: %w`, protocol.ErrFormatMismatch)
	}
	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf(`"chain" must be an array of token strings: %v: %w`, err, protocol.ErrFormatMismatch)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf(`"chain" array is empty: %w`, protocol.ErrFormatMismatch)
	}
	return tokens, nil
}

// verifyToken decodes one JWT's claims under the given trust anchor. A
// nil anchor means this is the first chain link, self-signed by the key
// in its own x5u header.
func verifyToken(token string, anchor *ecdsa.PublicKey) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"ES256", "ES384"}),
		jwt.WithoutClaimsValidation(),
	)
	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if anchor != nil {
			return anchor, nil
		}
		x5u, ok := t.Header["x5u"].(string)
		if !ok {
			return nil, fmt.Errorf("first chain link missing x5u header: %w", protocol.ErrFormatMismatch)
		}
		return parsePublicKey(x5u)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("signature does not match trust anchor: %w", ErrChainBroken)
		}
		return nil, err
	}
	return claims, nil
}

// parsePublicKey decodes a base64 DER-encoded EC public key.
func parsePublicKey(encoded string) (*ecdsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 public key: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("public key DER: %v: %w", err, protocol.ErrFormatMismatch)
	}
	ec, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want ECDSA: %w", key, protocol.ErrFormatMismatch)
	}
	return ec, nil
}
