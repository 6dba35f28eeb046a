package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"panel-dash/internal/model"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"
)

// Directory is the read side of the registries the bot reports from.
type Directory interface {
	Lookup(id string) (model.User, bool, error)
}

// BotHandler holds the bot instance and what its commands read.
type BotHandler struct {
	Bot       *telebot.Bot
	WebAppURL string
	Name      string
	dir       Directory
	servers   map[model.ServerID]model.Server
	log       *zap.Logger
}

// NewBotHandler initializes and returns a new BotHandler
func NewBotHandler(token, webAppURL, name string, dir Directory, servers []model.Server, log *zap.Logger) (*BotHandler, error) {
	pref := telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			log.Warn("bot handler error", zap.Error(err))
		},
	}

	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	handler := &BotHandler{
		Bot:       b,
		WebAppURL: webAppURL,
		Name:      name,
		dir:       dir,
		servers:   make(map[model.ServerID]model.Server, len(servers)),
		log:       log,
	}
	for _, s := range servers {
		handler.servers[s.ID] = s
	}

	handler.setupHandlers()
	return handler, nil
}

func (h *BotHandler) setupHandlers() {
	h.Bot.Handle("/start", h.handleStart)
	h.Bot.Handle("/cekakses", h.handleAccess)
}

// handleStart responds to the /start command with a Web App button
func (h *BotHandler) handleStart(c telebot.Context) error {
	webAppButton := telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{
			{
				telebot.InlineButton{
					Text:   "🚀 Open Dashboard",
					WebApp: &telebot.WebApp{URL: h.WebAppURL},
				},
			},
		},
	}

	message := fmt.Sprintf("Welcome to %s, %s! Use the button below to open the dashboard.", h.Name, c.Sender().FirstName)
	return c.Send(message, &webAppButton)
}

// handleAccess reports the sender's tier and server access.
func (h *BotHandler) handleAccess(c telebot.Context) error {
	id := strconv.FormatInt(c.Sender().ID, 10)
	u, known, err := h.dir.Lookup(id)
	if err != nil {
		h.log.Error("bot access lookup failed", zap.String("user_id", id), zap.Error(err))
		return c.Send("Could not read your access right now, please try again later.")
	}
	return c.Send(accessReport(id, u, known, h.servers))
}

func accessReport(id string, u model.User, known bool, servers map[model.ServerID]model.Server) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Telegram ID: %s\n", id)
	if !known {
		b.WriteString("You are not registered yet.")
		return b.String()
	}
	fmt.Fprintf(&b, "Tier: %s\n", u.Tier.Label())
	if u.IsOwner {
		b.WriteString("Role: Owner\n")
	}
	if len(u.Access) == 0 {
		b.WriteString("Servers: none")
		return b.String()
	}
	b.WriteString("Servers:")
	for _, s := range u.Access {
		name := string(s)
		if srv, ok := servers[s]; ok && srv.Name != "" {
			name = fmt.Sprintf("%s (%s)", srv.Name, s)
		}
		fmt.Fprintf(&b, "\n- %s", name)
	}
	return b.String()
}

// Start starts the bot poller
func (h *BotHandler) Start() {
	h.Bot.Start()
}
