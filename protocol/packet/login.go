package packet

import "github.com/bedrocknet/bedrocknet/protocol"

// Login is the first packet a client sends. ConnectionRequest carries the
// handshake payload the login package decodes into a certificate chain
// and client metadata token; it stays opaque at this layer.
type Login struct {
	ClientProtocol    int32
	ConnectionRequest []byte
}

func (*Login) ID() uint32 { return IDLogin }

func (pkt *Login) Marshal(w *protocol.Writer) error {
	w.Int32(pkt.ClientProtocol)
	w.ByteSlice(pkt.ConnectionRequest)
	return nil
}

func (pkt *Login) Unmarshal(r *protocol.Reader) error {
	var err error
	if pkt.ClientProtocol, err = r.Int32(); err != nil {
		return err
	}
	pkt.ConnectionRequest, err = r.ByteSlice()
	return err
}
