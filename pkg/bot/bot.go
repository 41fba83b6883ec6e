// Package bot lets pit crew drive the session from a Telegram chat: pit
// entries, manual kart overrides and quick looks at rows and scores.
package bot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"kartpitsbot/pkg/menus"
	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/race"
	"kartpitsbot/pkg/render"
)

const (
	menuStart = "/start"
	menuHelp  = "/help"
	menuRows  = "/rows"
	menuKarts = "/karts"
	menuTeams = "/teams"
	menuLive  = "/live"
	menuBoard = "/board"

	minPrefix = 4
)

var (
	commandPit   = regexp.MustCompile(`^/pit\s+(\d+)\s+(\S+)\s*$`)
	commandScore = regexp.MustCompile(`^/score\s+(\S+)(?:\s+(\S+))?\s*$`)
	commandColor = regexp.MustCompile(`^/colou?r\s+(\S+)\s+(\S+)\s*$`)
	commandLabel = regexp.MustCompile(`^/label\s+(\S+)(?:\s+(.+?))?\s*$`)
	commandAuto  = regexp.MustCompile(`^/auto\s+(\S+)\s*$`)
	botSuffix    = regexp.MustCompile(`^(/\w+)@\w+`)

	ErrAmbiguousKart = errors.New("kart reference matches several karts")

	pitMenu = menus.NewMenu("Pit",
		[]string{menuRows, menuBoard},
		[]string{menuKarts, menuTeams, menuLive},
		[]string{menuHelp},
	)
)

const helpText = `Commands:
/pit <row> <team> - team enters pit row
/score <kart> [value] - pin a score, no value clears it
/color <kart> <color> - pin a band: purple green yellow orange red blue
/label <kart> [text] - rename a kart, no text clears it
/auto <kart> - back to automatic scoring
/rows /karts /teams /live - tables
/board - pit board picture`

// Race is the session surface the bot drives.
type Race interface {
	State() model.State
	PitEntry(rowIndex int, teamNumber string) (model.Event, error)
	SetManualScore(kartID string, in race.Input) error
	SetManualColor(kartID string, in race.Input) error
	SetLabel(kartID string, in race.Input) error
	ClearOverride(kartID string) error
}

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	race    Race
	sender  Sender
	allowed map[int64]bool
	logger  *slog.Logger
}

// New returns a Bot. An empty allowed list accepts commands from any chat.
func New(r Race, sender Sender, allowed []int64, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{race: r, sender: sender, allowed: map[int64]bool{}, logger: logger}
	for _, id := range allowed {
		b.allowed[id] = true
	}
	return b
}

// Start handles updates until ctx is done or the channel closes.
func (b *Bot) Start(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || !strings.HasPrefix(message.Text, "/") {
		return
	}
	chatID := message.Chat.ID
	if len(b.allowed) > 0 && !b.allowed[chatID] {
		b.logger.Warn("command from unknown chat ignored", "chat", chatID)
		return
	}
	user := ""
	if message.From != nil {
		user = message.From.UserName
	}
	b.logger.Info("bot command", "chat", chatID, "user", user, "text", message.Text)

	reply, err := b.handleCommand(ctx, chatID, normalize(message.Text))
	if err != nil {
		reply = tgbotapi.NewMessage(chatID, "⚠️ "+err.Error())
	}
	if _, err := b.sender.Send(reply); err != nil {
		b.logger.Warn("bot reply failed", "chat", chatID, "error", err)
	}
}

// normalize strips the @botname suffix group chats add to commands.
func normalize(text string) string {
	text = strings.TrimSpace(text)
	if m := botSuffix.FindStringSubmatchIndex(text); m != nil {
		text = text[:m[3]] + text[m[1]:]
	}
	return text
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command string) (tgbotapi.Chattable, error) {
	switch {
	case command == menuStart:
		msg := tgbotapi.NewMessage(chatID, helpText)
		msg.ReplyMarkup = pitMenu.Keyboard()
		return msg, nil

	case command == menuHelp:
		return tgbotapi.NewMessage(chatID, helpText), nil

	case command == menuRows:
		return codeBlock(chatID, "Pit rows", render.PitRows(b.race.State())), nil

	case command == menuKarts:
		return codeBlock(chatID, "Karts", render.Karts(b.race.State())), nil

	case command == menuTeams:
		return codeBlock(chatID, "Teams", render.Teams(b.race.State())), nil

	case command == menuLive:
		return codeBlock(chatID, "Live timing", render.LiveTiming(b.race.State())), nil

	case command == menuBoard:
		var buf bytes.Buffer
		if err := render.BoardPNG(&buf, b.race.State()); err != nil {
			return nil, err
		}
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "board.png", Bytes: buf.Bytes()})
		photo.Caption = "Pit board, front of each row on the left"
		return photo, nil

	case commandPit.MatchString(command):
		m := commandPit.FindStringSubmatch(command)
		row, _ := strconv.Atoi(m[1])
		ev, err := b.race.PitEntry(row-1, m[2])
		if err != nil {
			return nil, err
		}
		return tgbotapi.NewMessage(chatID, "Pit entry\n"+ev.String()), nil

	case commandScore.MatchString(command):
		m := commandScore.FindStringSubmatch(command)
		return b.manual(chatID, m[1], m[2], b.race.SetManualScore)

	case commandColor.MatchString(command):
		m := commandColor.FindStringSubmatch(command)
		return b.manual(chatID, m[1], m[2], b.race.SetManualColor)

	case commandLabel.MatchString(command):
		m := commandLabel.FindStringSubmatch(command)
		return b.manual(chatID, m[1], m[2], b.race.SetLabel)

	case commandAuto.MatchString(command):
		id, err := b.resolveKart(commandAuto.FindStringSubmatch(command)[1])
		if err != nil {
			return nil, err
		}
		if err := b.race.ClearOverride(id); err != nil {
			return nil, err
		}
		return b.kartReply(chatID, id), nil
	}
	return tgbotapi.NewMessage(chatID, "Unknown command. "+menuHelp+" lists them."), nil
}

func (b *Bot) manual(chatID int64, ref, value string, set func(string, race.Input) error) (tgbotapi.Chattable, error) {
	id, err := b.resolveKart(ref)
	if err != nil {
		return nil, err
	}
	if err := set(id, race.Entered(value)); err != nil {
		return nil, err
	}
	return b.kartReply(chatID, id), nil
}

func (b *Bot) kartReply(chatID int64, id string) tgbotapi.Chattable {
	k, _ := b.race.State().KartByID(id)
	mode := "auto"
	if k.Manual {
		mode = "manual"
	}
	score := "-"
	if k.Score != nil {
		score = fmt.Sprintf("%.0f", *k.Score)
	}
	return tgbotapi.NewMessage(chatID, fmt.Sprintf("Kart %s (%s)\n  ▸ Score: %s\n  ▸ Band: %s\n  ▸ Mode: %s", render.KartName(k), render.ShortID(k.ID), score, k.Band, mode))
}

// resolveKart accepts a kart id, a unique id prefix or a label. A label that
// several karts carry resolves to the one a team is currently driving.
func (b *Bot) resolveKart(ref string) (string, error) {
	st := b.race.State()
	if _, ok := st.KartByID(ref); ok {
		return ref, nil
	}

	var prefixed, labelled []string
	for _, k := range st.Karts {
		if len(ref) >= minPrefix && strings.HasPrefix(k.ID, ref) {
			prefixed = append(prefixed, k.ID)
		}
		if strings.EqualFold(k.Label, ref) {
			labelled = append(labelled, k.ID)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0], nil
	}
	if len(labelled) > 1 {
		current := map[string]bool{}
		for _, t := range st.Teams {
			current[t.CurrentKartID] = true
		}
		var driven []string
		for _, id := range labelled {
			if current[id] {
				driven = append(driven, id)
			}
		}
		labelled = driven
	}
	switch {
	case len(labelled) == 1:
		return labelled[0], nil
	case len(labelled) > 1 || len(prefixed) > 1:
		return "", errors.Wrapf(ErrAmbiguousKart, "%q", ref)
	}
	return "", errors.Wrapf(race.ErrUnknownKart, "%q", ref)
}

func codeBlock(chatID int64, title, table string) tgbotapi.Chattable {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("```\n%s\n\n%s```", title, table))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return msg
}
