// AngelaMos | 2026
// signal.go

package realtime

import (
	"encoding/json"
)

type SignalType string

const (
	SignalNotificationChange SignalType = "notificationchange"
	SignalPresenceChange     SignalType = "userpresencechange"
	SignalPostStateChange    SignalType = "poststatechange"
)

// Signal is what travels over the bus between instances. Clients receive
// it re-encoded as a frame.
type Signal struct {
	Type     SignalType `json:"type"`
	UserID   string     `json:"user_id,omitempty"`
	PostCode string     `json:"post_code,omitempty"`
}

// Frame is the message written to websocket clients. Data only carries the
// id of what changed; clients fetch the state over REST.
type Frame struct {
	Event SignalType        `json:"event"`
	Data  map[string]string `json:"data"`
}

func (s Signal) Frame() Frame {
	data := make(map[string]string, 1)

	switch s.Type {
	case SignalNotificationChange:
		data["forUserId"] = s.UserID
	case SignalPresenceChange:
		data["userId"] = s.UserID
	case SignalPostStateChange:
		data["postCode"] = s.PostCode
	}

	return Frame{Event: s.Type, Data: data}
}

func (s Signal) encodeFrame() ([]byte, error) {
	return json.Marshal(s.Frame())
}

// clientMessage is what clients may send. The only event understood is
// userconnect, which identifies an anonymous connection.
type clientMessage struct {
	Event string `json:"event"`
	Token string `json:"token"`
}

const eventUserConnect = "userconnect"
