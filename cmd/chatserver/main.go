package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmechat/chat-server/internal/chat"
	"github.com/rmechat/chat-server/internal/config"
	"github.com/rmechat/chat-server/internal/db"
	"github.com/rmechat/chat-server/internal/httpapi"
	"github.com/rmechat/chat-server/internal/hub"
	"github.com/rmechat/chat-server/internal/identity"
	"github.com/rmechat/chat-server/internal/presence"
	"github.com/rmechat/chat-server/internal/protocol"
	"github.com/rmechat/chat-server/internal/ratelimit"
	"github.com/rmechat/chat-server/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	wsConfig := ws.DefaultServerConfig()
	wsConfig.ListenAddr = cfg.WSAddr
	wsConfig.WorkerPoolSize = cfg.WorkerPoolSize
	wsConfig.MaxConnections = cfg.MaxConnections
	wsConfig.ReadTimeout = cfg.ReadTimeout
	wsConfig.WriteTimeout = cfg.WriteTimeout

	// --- stores ---
	var (
		msglog chat.Log
		users  identity.UserStore
	)
	if cfg.DatabaseURL != "" {
		handle, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		defer handle.Close()
		if err := db.Migrate(handle); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
		msglog = chat.NewStore(handle)
		users = identity.NewPostgresStore(handle)
	} else {
		log.Printf("DATABASE_URL not set, using in-memory stores (state is lost on restart)")
		msglog = chat.NewMemoryLog()
		users = identity.NewMemoryStore()
	}

	// --- rate limiting ---
	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("connect to redis: %v", err)
		}
		cancel()
		defer client.Close()
		limiter = ratelimit.NewLimiter(client)
	} else {
		log.Printf("REDIS_ADDR not set, rate limiting disabled")
	}

	tokens := identity.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	registry := presence.NewRegistry(cfg.PollExpiry)

	log.Printf("chat server starting")
	log.Printf("  http_addr:       %s", cfg.HTTPAddr)
	log.Printf("  ws_addr:         %s", cfg.WSAddr)
	log.Printf("  worker_pool:     %d", cfg.WorkerPoolSize)
	log.Printf("  max_connections: %d", cfg.MaxConnections)
	log.Printf("  poll_expiry:     %s", cfg.PollExpiry)
	log.Printf("  poll_window:     %s", cfg.PollWindow)

	// Declare server early so the hub's sender closure can capture it.
	var server *ws.Server

	engine := hub.New(registry, msglog, hub.SenderFunc(func(ref string, data []byte) error {
		return server.SendMessage(ref, data)
	}), hub.Config{PollWindow: cfg.PollWindow, PollLimit: cfg.PollLimit})

	dispatcher := ws.NewMessageDispatcher()
	registerHandlers(dispatcher, engine)

	server = ws.NewServer(wsConfig, tokens, dispatcher.Dispatch)
	server.SetOnConnect(func(conn *ws.Connection) {
		engine.Connect(conn.Identity, conn.ID)
	})
	server.SetOnDisconnect(func(conn *ws.Connection) {
		engine.Disconnect(conn.Identity)
	})

	api := httpapi.New(engine, msglog, users, tokens, limiter)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
		if err := server.Shutdown(); err != nil {
			log.Printf("ws shutdown error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// registerHandlers wires the WebSocket message types to the fan-out engine.
func registerHandlers(dispatcher *ws.MessageDispatcher, engine *hub.Hub) {
	// -----------------------------------------------------------------------
	// chat_message — post to the shared room
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeChatMessage, func(conn *ws.Connection, msg interface{}) {
		chatMsg, ok := msg.(protocol.ChatMessageMsg)
		if !ok {
			return
		}

		_, err := engine.RoomMessage(context.Background(), conn.Identity, chatMsg.Content)
		switch {
		case errors.Is(err, chat.ErrEmptyContent):
			// Blank bodies are dropped without a reply.
		case errors.Is(err, chat.ErrContentTooLong), errors.Is(err, chat.ErrInvalidUTF8):
			resp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Code: "invalid_message", Message: err.Error(),
			})
			conn.WriteMessage(resp)
		case err != nil:
			log.Printf("chat_message from %s: %v", conn.Identity.Username, err)
			resp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Code: "send_failed", Message: "failed to send message",
			})
			conn.WriteMessage(resp)
		}
	})

	// -----------------------------------------------------------------------
	// private_message — deliver to one recipient, echo to sender
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypePrivateMessage, func(conn *ws.Connection, msg interface{}) {
		pm, ok := msg.(protocol.PrivateMessageMsg)
		if !ok {
			return
		}

		_, err := engine.PrivateMessage(context.Background(), conn.Identity, conn.ID, pm.Recipient, pm.Content)
		switch {
		case errors.Is(err, chat.ErrEmptyContent):
			// Missing recipient or body is dropped without a reply.
		case errors.Is(err, hub.ErrRecipientOffline):
			resp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Code: "recipient_offline", Message: pm.Recipient + " is not online",
			})
			conn.WriteMessage(resp)
		case errors.Is(err, chat.ErrContentTooLong), errors.Is(err, chat.ErrInvalidUTF8):
			resp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Code: "invalid_message", Message: err.Error(),
			})
			conn.WriteMessage(resp)
		case err != nil:
			log.Printf("private_message from %s: %v", conn.Identity.Username, err)
		}
	})

	// -----------------------------------------------------------------------
	// typing — relay typing indicator to everyone else
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeTyping, func(conn *ws.Connection, msg interface{}) {
		typingMsg, ok := msg.(protocol.TypingMsg)
		if !ok {
			return
		}
		engine.Typing(conn.Identity, conn.ID, typingMsg.IsTyping)
	})
}
