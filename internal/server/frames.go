// Package server implements the real-time core of SecureTalk: the WebSocket
// hub, per-connection read/write pumps, the connection registry that tracks
// presence, and the message delivery and read-receipt logic.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame type discriminators on the wire.
const (
	frameTypeAuth            = "auth"
	frameTypeSendMessage     = "send_message"
	frameTypeMarkRead        = "mark_read"
	frameTypeAuthed          = "authed"
	frameTypeDeliveryUpdate  = "delivery_update"
	frameTypeIncomingMessage = "incoming_message"
	frameTypeReadReceipt     = "read_receipt"
)

var errUnknownFrame = errors.New("unknown frame type")

// InboundFrame is the closed set of frames a client may send. Dispatch on
// the concrete type is exhaustive; anything else is dropped at decode time.
type InboundFrame interface {
	isInbound()
}

// AuthFrame binds a connection to the session's username.
type AuthFrame struct {
	Token string `json:"token"`
}

// SendMessageFrame submits a message to another user. ClientID is an opaque
// correlation token chosen by the sender and echoed back verbatim in the
// delivery update. Timestamp is client-supplied; the server never re-stamps.
type SendMessageFrame struct {
	To        string `json:"to"`
	Text      string `json:"text"`
	ClientID  string `json:"clientId"`
	Timestamp int64  `json:"timestamp"`
}

// MarkReadFrame bulk-marks every message from With to the caller as read.
type MarkReadFrame struct {
	With string `json:"with"`
}

func (AuthFrame) isInbound()        {}
func (SendMessageFrame) isInbound() {}
func (MarkReadFrame) isInbound()    {}

// decodeFrame parses a raw inbound frame into its typed representation.
// Malformed payloads and unrecognized types yield an error; the caller
// drops the frame silently per protocol.
func decodeFrame(data []byte) (InboundFrame, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding frame envelope: %w", err)
	}

	switch envelope.Type {
	case frameTypeAuth:
		var frame AuthFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, err
		}
		return frame, nil
	case frameTypeSendMessage:
		var frame SendMessageFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, err
		}
		return frame, nil
	case frameTypeMarkRead:
		var frame MarkReadFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, err
		}
		return frame, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownFrame, envelope.Type)
	}
}

// AuthedFrame acknowledges a successful bind.
type AuthedFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// DeliveryUpdateFrame reports the persisted outcome of a send back to the
// sender so its optimistically-rendered message can be reconciled.
type DeliveryUpdateFrame struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	ID       int64  `json:"id"`
	Status   string `json:"status"`
}

// IncomingMessageFrame pushes a message to its receiver. It deliberately
// carries no message id, mirroring the reference protocol.
type IncomingMessageFrame struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// ReadReceiptFrame notifies a sender that By has read their messages.
type ReadReceiptFrame struct {
	Type string `json:"type"`
	By   string `json:"by"`
}

func newAuthedFrame(username string) AuthedFrame {
	return AuthedFrame{Type: frameTypeAuthed, Username: username}
}

func newDeliveryUpdateFrame(clientID string, id int64, status string) DeliveryUpdateFrame {
	return DeliveryUpdateFrame{Type: frameTypeDeliveryUpdate, ClientID: clientID, ID: id, Status: status}
}

func newIncomingMessageFrame(from, text string, timestamp int64) IncomingMessageFrame {
	return IncomingMessageFrame{Type: frameTypeIncomingMessage, From: from, Text: text, Timestamp: timestamp}
}

func newReadReceiptFrame(by string) ReadReceiptFrame {
	return ReadReceiptFrame{Type: frameTypeReadReceipt, By: by}
}
