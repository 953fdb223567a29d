package event

// Call Event Types - Client to Server
const (
	// EventCallRequest - Caller rings a callee
	EventCallRequest = "video_call_request"

	// EventCallAccept - Callee accepts the incoming call
	EventCallAccept = "video_call_accept"

	// EventCallReject - Callee rejects the incoming call
	EventCallReject = "video_call_reject"

	// EventCallCancel - Caller cancels before the callee answers
	EventCallCancel = "video_call_cancel"

	// EventJoinRoom - Connection joins a signaling room
	EventJoinRoom = "join_video_room"

	// EventSendingSignal - Joiner offers a signal to an existing member
	EventSendingSignal = "sending_signal"

	// EventReturningSignal - Existing member answers a joiner's signal
	EventReturningSignal = "returning_signal"

	// EventEndCall - Either party ends the call for the whole room
	EventEndCall = "end_call"
)

// Call Event Types - Server to Client
const (
	// EventIncomingCall - Notify every callee connection of a ringing call
	EventIncomingCall = "incoming_video_call"

	// EventCallAccepted - Notify the initiating caller connection
	EventCallAccepted = "video_call_accepted"

	// EventCallRejected - Notify the initiating caller connection
	EventCallRejected = "video_call_rejected"

	// EventCallCanceled - Notify every callee connection
	EventCallCanceled = "video_call_canceled"

	// EventAllUsers - Existing room members sent to a joining connection
	EventAllUsers = "all_users"

	// EventUserJoined - Forwarded offer signal from a joining connection
	EventUserJoined = "user_joined"

	// EventReturnedSignal - Forwarded answer signal back to the joiner
	EventReturnedSignal = "receiving_returned_signal"

	// EventCallEnded - Broadcast to a room when the call ends
	EventCallEnded = "call_ended"

	// EventUserLeft - Broadcast to remaining members when one leaves
	EventUserLeft = "user_left"
)

// Call Configuration
const (
	// DefaultRingTimeout is the ring window in seconds; the caller side
	// cancels on its own once this elapses, the relay only tolerates the
	// stragglers that arrive after it.
	DefaultRingTimeout = 40
)
