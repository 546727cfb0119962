package server

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/securetalk/internal/store"
)

// handleAuth resolves the token and binds the connection to its username.
// An unresolvable token terminates the connection with a policy-violation
// close code; every other failure mode keeps the connection open.
// It reports false when the read loop must stop.
func (c *Client) handleAuth(frame AuthFrame) bool {
	username, ok := c.hub.sessions.Resolve(frame.Token)
	if !ok {
		c.logger.Info().Msg("rejecting unresolvable auth token")
		c.closePolicyViolation("invalid token")
		return false
	}

	if displaced := c.hub.registry.Bind(c, username); displaced != nil {
		// Last connection wins. The displaced connection stays open but
		// is no longer routable; it goes away when its client disconnects
		// or reconnects.
		c.logger.Info().Str("username", username).Msg("binding displaced a previous connection")
	}
	c.username = username

	c.hub.sendFrame(c, newAuthedFrame(username))
	c.logger.Debug().Str("username", username).Msg("connection authenticated")
	return true
}

// closePolicyViolation sends a 1008 close frame. Control frames may be
// written concurrently with the write pump.
func (c *Client) closePolicyViolation(reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug().Err(err).Msg("writing policy violation close")
	}
}

// handleSendMessage runs the delivery state machine for one message:
// persist with status "sent", push to the receiver when online and promote
// to "delivered", then acknowledge the sender with the persisted outcome.
//
// A persistence failure aborts the whole operation with no frame back to
// the sender; the connection remains usable for subsequent events.
func (c *Client) handleSendMessage(frame SendMessageFrame) {
	if frame.To == "" || frame.Text == "" {
		c.logger.Debug().Msg("dropping send_message with missing fields")
		return
	}

	id, err := c.hub.store.AppendMessage(c.hub.ctx, c.username, frame.To, frame.Text, frame.Timestamp)
	if err != nil {
		c.logger.Error().Err(err).Str("to", frame.To).Msg("persisting message")
		return
	}

	status := store.StatusSent
	if receiver, online := c.hub.registry.Lookup(frame.To); online {
		if c.hub.sendFrame(receiver, newIncomingMessageFrame(c.username, frame.Text, frame.Timestamp)) {
			status = store.StatusDelivered
			if err := c.hub.store.UpdateMessageStatus(c.hub.ctx, id, status); err != nil {
				// The live push already happened; the log catches up on
				// the next status transition.
				c.logger.Error().Err(err).Int64("id", id).Msg("promoting message to delivered")
			}
		}
	}

	c.hub.sendFrame(c, newDeliveryUpdateFrame(frame.ClientID, id, status))
}

// handleMarkRead bulk-marks every message from the peer to this user as
// read, then notifies the peer's live connection if present. The receipt
// is about the action, not the delta: it fires even when no rows changed,
// so repeated mark_read calls still refresh the peer's UI. An offline peer
// gets nothing; it learns the read state from history rows.
func (c *Client) handleMarkRead(frame MarkReadFrame) {
	if frame.With == "" {
		return
	}

	rows, err := c.hub.store.MarkConversationRead(c.hub.ctx, c.username, frame.With)
	if err != nil {
		c.logger.Error().Err(err).Str("with", frame.With).Msg("marking conversation read")
		return
	}
	c.logger.Debug().Str("with", frame.With).Int64("rows", rows).Msg("conversation marked read")

	if peer, online := c.hub.registry.Lookup(frame.With); online {
		c.hub.sendFrame(peer, newReadReceiptFrame(c.username))
	}
}
