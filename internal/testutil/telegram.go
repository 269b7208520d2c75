// Package testutil runs a fake Telegram Bot API for handler tests.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	telebot "gopkg.in/telebot.v3"
)

// TestToken is the bot token used by NewTelegramServer.
const TestToken = "123456:test-token"

const messageResult = `{"ok":true,"result":{"message_id":100,"date":0,"chat":{"id":1,"type":"private"},"text":"ok"}}`

// TelegramCall is one Bot API request received by the fake server.
type TelegramCall struct {
	Method string
	Params map[string]any
}

// Text returns a string parameter of the call.
func (c TelegramCall) Text(name string) string {
	value, _ := c.Params[name].(string)
	return value
}

// TelegramServer fakes the Bot API and records every request.
type TelegramServer struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []TelegramCall
	responses map[string]string
}

// NewTelegramServer starts the fake API and returns an offline, synchronous bot talking to it.
func NewTelegramServer(t testing.TB) (*TelegramServer, *telebot.Bot) {
	t.Helper()

	s := &TelegramServer{responses: make(map[string]string)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	bot, err := telebot.NewBot(telebot.Settings{
		URL:         s.URL,
		Token:       TestToken,
		Offline:     true,
		Synchronous: true,
		OnError:     func(error, telebot.Context) {},
	})
	if err != nil {
		t.Fatalf("create bot: %v", err)
	}

	return s, bot
}

// Respond overrides the raw JSON answer for method.
func (s *TelegramServer) Respond(method, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method] = body
}

// Calls returns a copy of the recorded requests.
func (s *TelegramServer) Calls() []TelegramCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TelegramCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsTo returns the recorded requests for method.
func (s *TelegramServer) CallsTo(method string) []TelegramCall {
	var out []TelegramCall
	for _, call := range s.Calls() {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// Texts returns the text of every sent or edited message in order.
func (s *TelegramServer) Texts() []string {
	var out []string
	for _, call := range s.Calls() {
		if call.Method == "sendMessage" || call.Method == "editMessageText" {
			out = append(out, call.Text("text"))
		}
	}
	return out
}

// LastText returns the text of the last sent or edited message.
func (s *TelegramServer) LastText() string {
	texts := s.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// Reset forgets recorded requests.
func (s *TelegramServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *TelegramServer) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	params := map[string]any{}
	if body, err := io.ReadAll(r.Body); err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, &params)
	}

	s.mu.Lock()
	s.calls = append(s.calls, TelegramCall{Method: method, Params: params})
	response, ok := s.responses[method]
	s.mu.Unlock()

	if !ok {
		switch method {
		case "sendMessage", "editMessageText":
			response = messageResult
		case "getUserProfilePhotos":
			response = `{"ok":true,"result":{"total_count":0,"photos":[]}}`
		default:
			response = `{"ok":true,"result":true}`
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, response)
}

// TestUser returns a Telegram user with stable names.
func TestUser(id int64) *telebot.User {
	return &telebot.User{ID: id, FirstName: "Ivan", LastName: "Petrov", Username: "ivan", LanguageCode: "ru"}
}

// TextUpdate builds a private-chat text message update.
func TextUpdate(id int, from *telebot.User, text string) telebot.Update {
	return telebot.Update{
		ID: id,
		Message: &telebot.Message{
			ID:     id,
			Sender: from,
			Chat:   &telebot.Chat{ID: from.ID, Type: telebot.ChatPrivate},
			Text:   text,
		},
	}
}

// ContactUpdate builds a shared-contact update. ownerID is the user the contact belongs to.
func ContactUpdate(id int, from *telebot.User, ownerID int64, phone string) telebot.Update {
	return telebot.Update{
		ID: id,
		Message: &telebot.Message{
			ID:     id,
			Sender: from,
			Chat:   &telebot.Chat{ID: from.ID, Type: telebot.ChatPrivate},
			Contact: &telebot.Contact{
				PhoneNumber: phone,
				FirstName:   from.FirstName,
				UserID:      ownerID,
			},
		},
	}
}

// CallbackUpdate builds an inline button press on a bot message.
func CallbackUpdate(id int, from *telebot.User, data string) telebot.Update {
	return telebot.Update{
		ID: id,
		Callback: &telebot.Callback{
			ID:     fmt.Sprintf("cb-%d", id),
			Sender: from,
			Data:   data,
			Message: &telebot.Message{
				ID:   500 + id,
				Chat: &telebot.Chat{ID: from.ID, Type: telebot.ChatPrivate},
				Text: "menu",
			},
		},
	}
}
