package chat

// Wire prefixes and fixed server lines.
const (
	CommandPrefix = "/"

	MaxUsernameLength = 20

	promptUsername   = "Enter username:"
	msgNameLength    = "[error] Username must be 1-20 characters."
	msgNameTaken     = "[error] Username already taken. Try another."
	msgWelcome       = "=== Connected! Type /help for commands ==="
	msgDisconnecting = "Disconnecting..."
	msgDMUsage       = "Usage: /dm <username> <message>"
	msgShutdown      = "[server] Server is shutting down."
)

// Disposition is what the CommandProcessor tells the session to do next.
type Disposition int

const (
	// NotCommand means the line was not a known command and should be
	// broadcast as ordinary chat.
	NotCommand Disposition = iota
	// Handled means the command ran and its replies are queued.
	Handled
	// Terminate ends the session after the reply has been queued.
	Terminate
)

func (d Disposition) String() string {
	switch d {
	case Handled:
		return "handled"
	case Terminate:
		return "terminate"
	default:
		return "not_command"
	}
}

var (
	ErrUsernameTaken     = errorString("username_taken")
	ErrUsernameInvalid   = errorString("username_invalid")
	ErrAlreadyRegistered = errorString("already_registered")

	// ErrConnClosed is the read/write outcome for a stream that has ended,
	// whether the peer hung up or the connection was closed locally.
	ErrConnClosed = errorString("conn_closed")
	ErrQueueFull  = errorString("outbound_queue_full")
)

type errorString string

func (e errorString) Error() string { return string(e) }
