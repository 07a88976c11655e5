package bot

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Update is the subset of a Telegram update the desk acts on
type Update struct {
	ID          int
	ExternalID  string
	FirstName   string
	LastName    string
	Command     string
	Text        string
	PhotoFileID string
	Caption     string
}

// FromTelegram flattens a message update. Other update kinds report false.
func FromTelegram(u tgbotapi.Update) (Update, bool) {
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return Update{}, false
	}

	out := Update{
		ID:         u.UpdateID,
		ExternalID: strconv.FormatInt(msg.Chat.ID, 10),
		Caption:    msg.Caption,
	}
	if msg.From != nil {
		out.FirstName = msg.From.FirstName
		out.LastName = msg.From.LastName
	}
	if msg.IsCommand() {
		out.Command = msg.Command()
	} else {
		out.Text = msg.Text
	}
	if n := len(msg.Photo); n > 0 {
		// sizes come smallest first
		out.PhotoFileID = msg.Photo[n-1].FileID
	}
	return out, true
}
