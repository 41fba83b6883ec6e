package menus

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Menu is a reply keyboard. Every button sends its own text, so buttons are
// plain bot commands.
type Menu struct {
	Name string
	Rows [][]string
}

func NewMenu(name string, rows ...[]string) Menu {
	return Menu{Name: name, Rows: rows}
}

func (m Menu) Keyboard() tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(m.Rows))
	for _, r := range m.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, text := range r {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}
