package realtime

import "encoding/json"

// 客户端发来的帧类型
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventCallRequest       = "call_request"
	EventAcceptCall        = "accept_call"
	EventRejectCall        = "reject_call"
	EventEndCall           = "end_call"
	EventHeartbeat         = "heartbeat"
)

// 服务端推送的帧类型
const (
	EventNewMessage      = "new_message"
	EventIncomingCall    = "incoming_call"
	EventCallAccepted    = "call_accepted"
	EventCallRejected    = "call_rejected"
	EventCallEnded       = "call_ended"
	EventCallUnavailable = "call_unavailable"
	EventNotification    = "notification"
	EventError           = "error"
)

// Envelope 帧信封 {"type": ..., "data": {...}}
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode 编码一帧
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: event, Data: raw})
}

type conversationPayload struct {
	ConversationID uint `json:"conversation_id"`
}

type sendMessagePayload struct {
	ConversationID uint   `json:"conversation_id"`
	Content        string `json:"content"`
	Type           string `json:"type"`
}

type callRequestPayload struct {
	TargetUserID uint   `json:"target_user_id"`
	CallType     string `json:"call_type"`
	ID           string `json:"id"`
}

type callPayload struct {
	CallID       string `json:"call_id"`
	TargetUserID uint   `json:"target_user_id"`
}

// CallEvent 通话信令推送内容
type CallEvent struct {
	CallID   string `json:"call_id"`
	CallerID uint   `json:"caller_id"`
	CalleeID uint   `json:"callee_id"`
	CallType string `json:"call_type,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ErrorEvent 错误推送内容
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}
