// Package hub implements the fan-out router. Given an inbound message or
// lifecycle event it decides which online users are affected, pushes the
// resulting events to their channels, and keeps the presence registry in
// step with both transports' liveness signals.
//
// All dispatch is synchronous: a method returns once every recipient
// delivery has been attempted. Writes to channels that died moments ago are
// no-ops, not errors; the push transport reaps dead connections on its own.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/rmechat/chat-server/internal/chat"
	"github.com/rmechat/chat-server/internal/identity"
	"github.com/rmechat/chat-server/internal/metrics"
	"github.com/rmechat/chat-server/internal/presence"
	"github.com/rmechat/chat-server/internal/protocol"
)

// ErrRecipientOffline is returned by PrivateMessage when the recipient has
// no presence entry. Private messages are never queued for later delivery.
var ErrRecipientOffline = errors.New("hub: recipient not online")

// PollChannelPrefix builds the synthetic channel marker registered for
// polling clients. It is a recognizable tag, not a deliverable channel.
const PollChannelPrefix = "http-client-"

// Sender delivers an encoded event to a push channel identified by its
// channel ref. Implementations must treat writes to closed channels as
// harmless failures.
type Sender interface {
	Send(channelRef string, data []byte) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(channelRef string, data []byte) error

// Send calls f(channelRef, data).
func (f SenderFunc) Send(channelRef string, data []byte) error { return f(channelRef, data) }

// Config holds the fan-out tunables.
type Config struct {
	PollWindow time.Duration // default watermark when a poll carries none
	PollLimit  int           // max messages returned per poll
}

// DefaultConfig returns the production defaults: a one minute implicit
// watermark and a 50 message cap per poll.
func DefaultConfig() Config {
	return Config{
		PollWindow: time.Minute,
		PollLimit:  chat.DefaultQueryLimit,
	}
}

// Hub routes messages and announcements between online users.
type Hub struct {
	registry *presence.Registry
	msglog   chat.Log
	sender   Sender
	cfg      Config

	// broadcastMu serializes room broadcasts so every push recipient
	// observes room messages in log-append order.
	broadcastMu sync.Mutex
}

// New creates a Hub over the given registry, message log, and push sender.
func New(registry *presence.Registry, msglog chat.Log, sender Sender, cfg Config) *Hub {
	if cfg.PollWindow <= 0 {
		cfg.PollWindow = time.Minute
	}
	if cfg.PollLimit <= 0 {
		cfg.PollLimit = chat.DefaultQueryLimit
	}
	return &Hub{
		registry: registry,
		msglog:   msglog,
		sender:   sender,
		cfg:      cfg,
	}
}

// ---------------------------------------------------------------------------
// Push connection lifecycle
// ---------------------------------------------------------------------------

// Connect moves an authenticated push connection online: the user is
// registered, everyone else hears user_joined, and the newcomer alone
// receives the current online list.
func (h *Hub) Connect(id identity.Identity, channelRef string) {
	h.registry.Register(id.UserID, id.Username, channelRef, presence.KindPush)
	h.updatePresenceGauges()

	joined, err := protocol.NewServerMessage(protocol.TypeUserJoined, protocol.UserJoinedMsg{
		Username:    id.Username,
		OnlineCount: h.registry.Count(),
	})
	if err != nil {
		log.Printf("hub: build user_joined for %s: %v", id.Username, err)
	} else {
		h.broadcastPush(joined, channelRef)
	}

	users, count := h.OnlineUsers()
	snapshot, err := protocol.NewServerMessage(protocol.TypeOnlineUsers, protocol.OnlineUsersMsg{
		Users: users,
		Count: count,
	})
	if err != nil {
		log.Printf("hub: build online_users for %s: %v", id.Username, err)
		return
	}
	_ = h.sender.Send(channelRef, snapshot)
}

// Disconnect handles a push channel close. The registry removal result
// gates the user_left broadcast so a departure is announced at most once,
// no matter how many close signals the transport detects.
func (h *Hub) Disconnect(id identity.Identity) {
	if !h.registry.Remove(id.UserID) {
		return
	}
	h.updatePresenceGauges()

	left, err := protocol.NewServerMessage(protocol.TypeUserLeft, protocol.UserLeftMsg{
		Username:    id.Username,
		OnlineCount: h.registry.Count(),
	})
	if err != nil {
		log.Printf("hub: build user_left for %s: %v", id.Username, err)
		return
	}
	h.broadcastPush(left, "")
}

// ---------------------------------------------------------------------------
// Message operations
// ---------------------------------------------------------------------------

// RoomMessage validates, persists, and broadcasts a room message from
// either transport. The persisted event is returned; validation failures
// and log errors come back to the caller, which surfaces them to the
// originating client only.
func (h *Hub) RoomMessage(ctx context.Context, id identity.Identity, content string) (chat.Event, error) {
	if err := chat.ValidateContent(content); err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return chat.Event{}, err
	}

	ev := chat.NewRoomEvent(id.Username, strings.TrimSpace(content), time.Now())
	if err := h.msglog.Append(ctx, ev); err != nil {
		return chat.Event{}, fmt.Errorf("hub: persist room message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues("room").Inc()

	data, err := protocol.NewServerMessage(protocol.TypeChatMessage, protocol.ServerChatMsg{
		ID:       ev.ID,
		Username: ev.Username,
		Content:  ev.Content,
		SentAt:   ev.SentAt,
	})
	if err != nil {
		return ev, fmt.Errorf("hub: encode room message: %w", err)
	}

	// Every push connection gets the message, the sender included. Poll
	// clients pick it up on their next poll that covers the timestamp.
	h.broadcastPush(data, "")
	return ev, nil
}

// PrivateMessage routes a one-to-one message from a push client. The event
// is delivered to the recipient's channel when one is live and echoed back
// to the sender as confirmation. It is never persisted and never queued;
// an offline recipient yields ErrRecipientOffline.
func (h *Hub) PrivateMessage(ctx context.Context, id identity.Identity, senderRef, recipient, content string) (chat.Event, error) {
	if recipient == "" || strings.TrimSpace(content) == "" {
		return chat.Event{}, chat.ErrEmptyContent
	}
	if err := chat.ValidateContent(content); err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return chat.Event{}, err
	}

	entry, err := h.registry.FindByUsername(recipient)
	if errors.Is(err, presence.ErrNotFound) {
		return chat.Event{}, ErrRecipientOffline
	}
	if err != nil {
		return chat.Event{}, err
	}

	ev := chat.NewPrivateEvent(id.Username, recipient, strings.TrimSpace(content), time.Now())
	data, err := protocol.NewServerMessage(protocol.TypePrivateMessage, protocol.ServerPrivateMsg{
		From:    ev.Username,
		To:      ev.Recipient,
		Content: ev.Content,
		SentAt:  ev.SentAt,
	})
	if err != nil {
		return ev, fmt.Errorf("hub: encode private message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues("private").Inc()

	// The registry entry can outlive the channel for a moment; a failed or
	// impossible delivery (poll-kind recipient) is a no-op, not an error.
	if entry.Kind == presence.KindPush {
		_ = h.sender.Send(entry.ChannelRef, data)
	}
	_ = h.sender.Send(senderRef, data)
	return ev, nil
}

// Typing relays a typing indicator to every other push connection.
// Fire-and-forget: no persistence, no registry interaction, no delivery
// guarantee.
func (h *Hub) Typing(id identity.Identity, senderRef string, isTyping bool) {
	data, err := protocol.NewServerMessage(protocol.TypeUserTyping, protocol.UserTypingMsg{
		Username: id.Username,
		IsTyping: isTyping,
	})
	if err != nil {
		log.Printf("hub: build user_typing for %s: %v", id.Username, err)
		return
	}
	metrics.MessagesTotal.WithLabelValues("typing").Inc()
	h.broadcastPush(data, senderRef)
}

// ---------------------------------------------------------------------------
// Polling
// ---------------------------------------------------------------------------

// PollResult is the answer to one poll request.
type PollResult struct {
	Messages    []chat.Event
	ServerTime  time.Time
	OnlineUsers []protocol.OnlineUser
	OnlineCount int
}

// Poll serves one request from a polling client: the caller's presence is
// refreshed under a fresh synthetic channel marker, stale pollers are
// reaped, and the response carries room messages after the watermark plus
// the current online list. A zero since selects the implicit window
// (PollWindow before now). Poll appearances and expiries are silent: they
// never produce joined or left announcements.
func (h *Hub) Poll(ctx context.Context, id identity.Identity, since time.Time) (PollResult, error) {
	now := time.Now()
	ref := PollChannelPrefix + id.UserID

	if _, err := h.registry.Touch(id.UserID, ref, presence.KindPoll); errors.Is(err, presence.ErrNotFound) {
		h.registry.Register(id.UserID, id.Username, ref, presence.KindPoll)
	}

	// Reconciliation piggy-backs on poll traffic rather than a timer.
	h.registry.Reap(now)
	h.updatePresenceGauges()

	if since.IsZero() {
		since = now.Add(-h.cfg.PollWindow)
	}

	msgs, err := h.msglog.RoomSince(ctx, since, h.cfg.PollLimit)
	if err != nil {
		return PollResult{}, fmt.Errorf("hub: query messages since %s: %w", since.Format(time.RFC3339), err)
	}

	users, count := h.OnlineUsers()
	return PollResult{
		Messages:    msgs,
		ServerTime:  now,
		OnlineUsers: users,
		OnlineCount: count,
	}, nil
}

// OnlineUsers reports the registry snapshot as a list and count. The count
// always equals the snapshot's cardinality at the moment of the call.
func (h *Hub) OnlineUsers() ([]protocol.OnlineUser, int) {
	snap := h.registry.Snapshot()
	users := make([]protocol.OnlineUser, 0, len(snap))
	for _, e := range snap {
		users = append(users, protocol.OnlineUser{UserID: e.UserID, Username: e.Username})
	}
	return users, len(users)
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// broadcastPush writes data to every push-kind entry except exceptRef.
// Failed writes are ignored; the push transport cleans up dead connections.
func (h *Hub) broadcastPush(data []byte, exceptRef string) {
	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()

	sent := 0
	for _, e := range h.registry.Snapshot() {
		if e.Kind != presence.KindPush || e.ChannelRef == exceptRef {
			continue
		}
		if err := h.sender.Send(e.ChannelRef, data); err == nil {
			sent++
		}
	}
	metrics.BroadcastRecipients.Observe(float64(sent))
}

func (h *Hub) updatePresenceGauges() {
	var push, poll float64
	for _, e := range h.registry.Snapshot() {
		if e.Kind == presence.KindPush {
			push++
		} else {
			poll++
		}
	}
	metrics.OnlineUsers.WithLabelValues("push").Set(push)
	metrics.OnlineUsers.WithLabelValues("poll").Set(poll)
}
