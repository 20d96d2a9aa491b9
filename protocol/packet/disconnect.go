package packet

import "github.com/bedrocknet/bedrocknet/protocol"

// Disconnect tells the peer the connection is being closed. When
// HideScreen is set the client shows no disconnect screen and Message is
// omitted from the wire entirely.
type Disconnect struct {
	HideScreen bool
	Message    string
}

func (*Disconnect) ID() uint32 { return IDDisconnect }

func (pkt *Disconnect) Marshal(w *protocol.Writer) error {
	w.Bool(pkt.HideScreen)
	if !pkt.HideScreen {
		w.String(pkt.Message)
	}
	return nil
}

func (pkt *Disconnect) Unmarshal(r *protocol.Reader) error {
	var err error
	if pkt.HideScreen, err = r.Bool(); err != nil {
		return err
	}
	if pkt.HideScreen {
		pkt.Message = ""
		return nil
	}
	pkt.Message, err = r.String()
	return err
}
