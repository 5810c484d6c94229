package dto

type AuthTelegramRequest struct {
	InitData string `json:"init_data"`
}

// BotUpdateRequest is what the bot gateway forwards for every message or
// button press.
type BotUpdateRequest struct {
	TelegramUserID int64  `json:"telegram_user_id"`
	Username       string `json:"username,omitempty"`
	Text           string `json:"text,omitempty"`
	CallbackData   string `json:"callback_data,omitempty"`
	MessageID      int64  `json:"message_id,omitempty"`
}
