package realtime

// Server event types pushed to a user's group.
const (
	// EventReceiveClientMessage echoes a client's outbound message to all of
	// that user's devices before the backend is called.
	EventReceiveClientMessage = "receiveClientMessage"
	// EventReceiveChunk carries one chunk of a streaming backend response.
	EventReceiveChunk = "receiveChunk"
	// EventReceiveMessage carries a full backend response or a directly
	// delivered message.
	EventReceiveMessage = "receiveMessage"
	// EventErrorOccurred is distinguishable from a normal response on the
	// client side.
	EventErrorOccurred = "errorOccurred"
	// EventRoomTitle carries a room-title update.
	EventRoomTitle = "receiveRoomTitle"
)

// Client operation types accepted over the socket.
const (
	opRegisterPushToken    = "registerPushToken"
	opSendStreamingMessage = "sendStreamingMessage"
	opSendMessage          = "sendMessage"
)

// ServerEvent is one frame pushed to a live connection.
type ServerEvent struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// clientFrame is one operation received from a live connection.
type clientFrame struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}
