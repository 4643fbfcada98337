package models

// Bot dialog steps.
const (
	StepAwaitingNickname = "awaiting_nickname"
)

// ChatState is the bot's per-chat dialog position, kept outside the
// process so a restart does not strand users mid-flow.
type ChatState struct {
	ChatID int64             `json:"chat_id"`
	Step   string            `json:"step"`
	Data   map[string]string `json:"data,omitempty"`
}
