package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin announces the client's username and identifies the connection.
	CommandJoin CommandKind = iota
	// CommandSendMessage routes a direct message to another user.
	CommandSendMessage
	// CommandFetchConversation requests the full history with a peer.
	CommandFetchConversation
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Username string // CommandJoin
	Receiver string // CommandSendMessage: receiver username
	Content  string // CommandSendMessage
	PeerID   int64  // CommandFetchConversation
}
