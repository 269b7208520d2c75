package bot

// Command constants for Telegram bot commands.
const (
	CommandStart    = "/start"
	CommandHelp     = "/help"
	CommandStats    = "/stats"
	CommandSync     = "/sync"
	CommandProfile  = "/profile"
	CommandSettings = "/settings"
)
