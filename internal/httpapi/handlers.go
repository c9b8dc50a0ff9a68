package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rmechat/chat-server/internal/chat"
	"github.com/rmechat/chat-server/internal/identity"
	"github.com/rmechat/chat-server/internal/metrics"
	"github.com/rmechat/chat-server/internal/ratelimit"
)

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DiscordName string `json:"discord_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sendRequest struct {
	Token   string `json:"token"`
	Content string `json:"content"`
}

type userPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, count := s.hub.OnlineUsers()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"online_count": count,
		"uptime":       time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 || len(req.Username) > 20 {
		writeJSON(w, http.StatusBadRequest, errorResponse("Username must be 3-20 characters"))
		return
	}
	if len(req.Password) < 6 {
		writeJSON(w, http.StatusBadRequest, errorResponse("Password must be at least 6 characters"))
		return
	}

	id, err := s.users.Create(r.Context(), req.Username, req.Password, strings.TrimSpace(req.DiscordName))
	if errors.Is(err, identity.ErrUsernameTaken) {
		writeJSON(w, http.StatusConflict, errorResponse("Username already taken"))
		return
	}
	if err != nil {
		log.Printf("httpapi: register %q: %v", req.Username, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("Registration failed"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "User registered successfully",
		"user":    userPayload{UserID: id.UserID, Username: id.Username},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		return
	}

	id, err := s.users.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Invalid username or password"))
		return
	}
	if err != nil {
		log.Printf("httpapi: login %q: %v", req.Username, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("Login failed"))
		return
	}

	token, err := s.tokens.Mint(id)
	if err != nil {
		log.Printf("httpapi: mint token for %s: %v", id.UserID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("Login failed"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
		"user":    userPayload{UserID: id.UserID, Username: id.Username},
	})
}

// handleMessages returns the most recent room history, oldest first.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.msglog.Recent(r.Context(), chat.DefaultQueryLimit)
	if err != nil {
		log.Printf("httpapi: load recent messages: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("Failed to load messages"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": eventList(msgs),
	})
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	users, count := s.hub.OnlineUsers()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"users":   users,
		"count":   count,
	})
}

// handleSend accepts a room message from a polling client. The message is
// validated, persisted, and fanned out to every push channel exactly as if
// it had arrived over a socket.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		return
	}

	id, err := s.tokens.Resolve(r.Context(), req.Token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Invalid token"))
		return
	}

	if s.limiter != nil {
		allowed, _ := s.limiter.Allow(r.Context(), id.UserID, ratelimit.RuleSend)
		if !allowed {
			writeJSON(w, http.StatusTooManyRequests, errorResponse("Too many messages"))
			return
		}
	}

	ev, err := s.hub.RoomMessage(r.Context(), id, req.Content)
	if err != nil {
		status, msg := sendFailure(err)
		if status == http.StatusInternalServerError {
			log.Printf("httpapi: send message for %s: %v", id.UserID, err)
		}
		writeJSON(w, status, errorResponse(msg))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": ev,
	})
}

// sendFailure maps a RoomMessage error to the status and body text of the
// rejection response.
func sendFailure(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrEmptyContent):
		return http.StatusBadRequest, "Message cannot be empty"
	case errors.Is(err, chat.ErrContentTooLong):
		return http.StatusBadRequest, "Message is too long"
	case errors.Is(err, chat.ErrInvalidUTF8):
		return http.StatusBadRequest, "Message is not valid UTF-8"
	default:
		return http.StatusInternalServerError, "Failed to send message"
	}
}

// handlePoll is the request/response counterpart of holding a socket open:
// it refreshes the caller's presence, returns room messages after the
// watermark, and reports the reconciled online list.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := s.tokens.Resolve(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Invalid token"))
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("Invalid since timestamp"))
			return
		}
	}

	res, err := s.hub.Poll(r.Context(), id, since)
	if err != nil {
		log.Printf("httpapi: poll for %s: %v", id.UserID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("Poll failed"))
		return
	}

	metrics.PollDuration.Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"messages":     eventList(res.Messages),
		"timestamp":    res.ServerTime.UTC().Format(time.RFC3339),
		"online_users": res.OnlineUsers,
		"online_count": res.OnlineCount,
	})
}

// eventList never marshals as null.
func eventList(msgs []chat.Event) []chat.Event {
	if msgs == nil {
		return []chat.Event{}
	}
	return msgs
}

func errorResponse(msg string) map[string]interface{} {
	return map[string]interface{}{"success": false, "message": msg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: write response: %v", err)
	}
}
