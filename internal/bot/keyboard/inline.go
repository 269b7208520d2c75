package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// InlineButton is either a callback button (Unique/Data) or a web-app button (WebAppURL).
type InlineButton struct {
	Text      string
	Unique    string
	Data      string
	WebAppURL string
}

// InlineKeyboardBuilder accumulates rows of InlineButton definitions before rendering telebot markup.
type InlineKeyboardBuilder struct {
	rows [][]InlineButton
}

func NewInlineKeyboard() *InlineKeyboardBuilder {
	return &InlineKeyboardBuilder{rows: make([][]InlineButton, 0)}
}

// AddRow appends a row; empty rows are skipped.
func (b *InlineKeyboardBuilder) AddRow(buttons ...InlineButton) *InlineKeyboardBuilder {
	if len(buttons) == 0 {
		return b
	}

	row := make([]InlineButton, len(buttons))
	copy(row, buttons)
	b.rows = append(b.rows, row)
	return b
}

// Build renders the markup. Callback data is passed to Telegram as is, without
// telebot's unique prefix, so the router sees exactly what EncodeCallback produced.
func (b *InlineKeyboardBuilder) Build() (*telebot.ReplyMarkup, error) {
	inlineKeyboard := make([][]telebot.InlineButton, 0, len(b.rows))
	for _, row := range b.rows {
		rendered := make([]telebot.InlineButton, 0, len(row))
		for _, btn := range row {
			if btn.WebAppURL != "" {
				rendered = append(rendered, telebot.InlineButton{
					Text:   btn.Text,
					WebApp: &telebot.WebApp{URL: btn.WebAppURL},
				})
				continue
			}

			data, err := EncodeCallback(btn.Unique, btn.Data)
			if err != nil {
				return nil, err
			}
			rendered = append(rendered, telebot.InlineButton{Text: btn.Text, Data: data})
		}
		inlineKeyboard = append(inlineKeyboard, rendered)
	}

	return &telebot.ReplyMarkup{InlineKeyboard: inlineKeyboard}, nil
}
