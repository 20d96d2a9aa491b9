package login

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bedrocknet/bedrocknet/protocol"
)

type testKey struct {
	priv    *ecdsa.PrivateKey
	encoded string // base64 DER, the wire form of the public key
}

func newTestKey(t *testing.T) testKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return testKey{priv: priv, encoded: base64.StdEncoding.EncodeToString(der)}
}

// signLink signs one chain link with signer, claiming next as the key
// anchoring the following link. The first link carries its own public key
// in the x5u header.
func signLink(t *testing.T, signer testKey, selfSigned bool, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES384, claims)
	if selfSigned {
		token.Header["x5u"] = signer.encoded
	}
	s, err := token.SignedString(signer.priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// buildRequest assembles the full handshake wire payload from a chain
// JSON document and a raw token.
func buildRequest(t *testing.T, chainJSON []byte, rawToken string) []byte {
	t.Helper()
	w := protocol.NewWriter()
	w.VarUint32(uint32(8 + len(chainJSON) + len(rawToken)))
	w.Int32(int32(len(chainJSON)))
	w.Raw(chainJSON)
	w.Int32(int32(len(rawToken)))
	w.Raw([]byte(rawToken))
	return w.Bytes()
}

// validHandshake builds a 3-link chain (root -> intermediate -> identity)
// plus a raw metadata token signed by the identity-claimed key.
func validHandshake(t *testing.T) []byte {
	t.Helper()
	root := newTestKey(t)
	mid := newTestKey(t)
	ident := newTestKey(t)
	client := newTestKey(t)

	chain := []string{
		signLink(t, root, true, jwt.MapClaims{"identityPublicKey": mid.encoded}),
		signLink(t, mid, false, jwt.MapClaims{"identityPublicKey": ident.encoded}),
		signLink(t, ident, false, jwt.MapClaims{
			"identityPublicKey": client.encoded,
			"extraData": map[string]any{
				"XUID":        "2535400000000000",
				"identity":    "8f57f8a9-4c3e-4b9d-9c8e-000000000001",
				"displayName": "Steve",
			},
		}),
	}
	chainJSON, err := json.Marshal(map[string][]string{"chain": chain})
	if err != nil {
		t.Fatalf("marshal chain: %v", err)
	}
	raw := signLink(t, client, false, jwt.MapClaims{
		"DeviceModel":  "test rig",
		"LanguageCode": "en_US",
	})
	return buildRequest(t, chainJSON, raw)
}

func TestDecodeRequestValidChain(t *testing.T) {
	req, err := DecodeRequest(validHandshake(t))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if len(req.Chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(req.Chain))
	}
	if len(req.RawToken) == 0 {
		t.Error("raw token claims are empty")
	}
	if req.RawToken["LanguageCode"] != "en_US" {
		t.Errorf("LanguageCode = %v, want en_US", req.RawToken["LanguageCode"])
	}
	if req.IdentityKey == nil {
		t.Error("IdentityKey is nil")
	}

	ident, ok := req.Identity()
	if !ok {
		t.Fatal("Identity() reported no identity data")
	}
	if ident.DisplayName != "Steve" || ident.XUID != "2535400000000000" {
		t.Errorf("Identity() = %+v", ident)
	}
}

func TestDecodeRequestBrokenChain(t *testing.T) {
	root := newTestKey(t)
	mid := newTestKey(t)
	ident := newTestKey(t)
	impostor := newTestKey(t)

	// Link 2 is signed by a key other than the one link 1 claimed.
	chain := []string{
		signLink(t, root, true, jwt.MapClaims{"identityPublicKey": mid.encoded}),
		signLink(t, mid, false, jwt.MapClaims{"identityPublicKey": ident.encoded}),
		signLink(t, impostor, false, jwt.MapClaims{"identityPublicKey": impostor.encoded}),
	}
	chainJSON, _ := json.Marshal(map[string][]string{"chain": chain})
	raw := signLink(t, impostor, false, jwt.MapClaims{"DeviceModel": "x"})

	req, err := DecodeRequest(buildRequest(t, chainJSON, raw))
	if !errors.Is(err, ErrChainBroken) {
		t.Errorf("DecodeRequest: got %v, want ErrChainBroken", err)
	}
	if req != nil {
		t.Error("DecodeRequest returned a partially populated request alongside an error")
	}
}

func TestDecodeRequestMissingChainKey(t *testing.T) {
	chainJSON := []byte(`{"certificates": []}`)
	key := newTestKey(t)
	raw := signLink(t, key, false, jwt.MapClaims{"a": "b"})

	req, err := DecodeRequest(buildRequest(t, chainJSON, raw))
	if !errors.Is(err, protocol.ErrFormatMismatch) {
		t.Errorf("DecodeRequest: got %v, want ErrFormatMismatch", err)
	}
	if req != nil {
		t.Error("DecodeRequest returned a request despite the malformed envelope")
	}
}

func TestDecodeRequestChainWrongShape(t *testing.T) {
	cases := []struct {
		name  string
		chain string
	}{
		{"chain not array", `{"chain": "jwt"}`},
		{"chain empty", `{"chain": []}`},
		{"top level not object", `["jwt"]`},
	}
	key := newTestKey(t)
	raw := signLink(t, key, false, jwt.MapClaims{"a": "b"})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRequest(buildRequest(t, []byte(tc.chain), raw))
			if !errors.Is(err, protocol.ErrFormatMismatch) {
				t.Errorf("got %v, want ErrFormatMismatch", err)
			}
		})
	}
}

func TestDecodeRequestMissingX5U(t *testing.T) {
	root := newTestKey(t)
	chain := []string{
		signLink(t, root, false, jwt.MapClaims{"identityPublicKey": root.encoded}),
	}
	chainJSON, _ := json.Marshal(map[string][]string{"chain": chain})
	raw := signLink(t, root, false, jwt.MapClaims{"a": "b"})

	_, err := DecodeRequest(buildRequest(t, chainJSON, raw))
	if !errors.Is(err, protocol.ErrFormatMismatch) {
		t.Errorf("got %v, want ErrFormatMismatch", err)
	}
}

func TestDecodeRequestMissingIdentityPublicKey(t *testing.T) {
	root := newTestKey(t)
	chain := []string{
		signLink(t, root, true, jwt.MapClaims{"someOtherClaim": true}),
	}
	chainJSON, _ := json.Marshal(map[string][]string{"chain": chain})
	raw := signLink(t, root, false, jwt.MapClaims{"a": "b"})

	_, err := DecodeRequest(buildRequest(t, chainJSON, raw))
	if !errors.Is(err, protocol.ErrFormatMismatch) {
		t.Errorf("got %v, want ErrFormatMismatch", err)
	}
}

func TestDecodeRequestBadBase64Key(t *testing.T) {
	root := newTestKey(t)
	chain := []string{
		signLink(t, root, true, jwt.MapClaims{"identityPublicKey": "!!! not base64 !!!"}),
	}
	chainJSON, _ := json.Marshal(map[string][]string{"chain": chain})
	raw := signLink(t, root, false, jwt.MapClaims{"a": "b"})

	_, err := DecodeRequest(buildRequest(t, chainJSON, raw))
	if err == nil {
		t.Fatal("DecodeRequest accepted a malformed identityPublicKey")
	}
	var b64 base64.CorruptInputError
	if !errors.As(err, &b64) {
		t.Errorf("got %v, want a base64 decode error", err)
	}
}

func TestDecodeRequestRawTokenSignedByWrongKey(t *testing.T) {
	root := newTestKey(t)
	client := newTestKey(t)
	other := newTestKey(t)

	chain := []string{
		signLink(t, root, true, jwt.MapClaims{"identityPublicKey": client.encoded}),
	}
	chainJSON, _ := json.Marshal(map[string][]string{"chain": chain})
	raw := signLink(t, other, false, jwt.MapClaims{"a": "b"})

	_, err := DecodeRequest(buildRequest(t, chainJSON, raw))
	if !errors.Is(err, ErrChainBroken) {
		t.Errorf("got %v, want ErrChainBroken", err)
	}
}

func TestDecodeRequestTruncatedRegions(t *testing.T) {
	payload := validHandshake(t)
	for _, cut := range []int{1, 5, len(payload) / 2, len(payload) - 1} {
		if _, err := DecodeRequest(payload[:cut]); err == nil {
			t.Errorf("DecodeRequest accepted payload cut to %d bytes", cut)
		}
	}
}

func TestDecodeRequestNegativeRegionLength(t *testing.T) {
	w := protocol.NewWriter()
	w.VarUint32(8)
	w.Int32(-5)
	_, err := DecodeRequest(w.Bytes())
	if !errors.Is(err, protocol.ErrFormatMismatch) {
		t.Errorf("got %v, want ErrFormatMismatch", err)
	}
}
