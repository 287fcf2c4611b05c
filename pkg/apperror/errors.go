package apperror

var (
	ErrUserNotFound         = New(CodeNotFound, "user not found")
	ErrConnectionNotFound   = New(CodeNotFound, "connection not found")
	ErrServiceNotFound      = New(CodeNotFound, "service not found")
	ErrConversationNotFound = New(CodeNotFound, "conversation not found")
	ErrNotificationNotFound = New(CodeNotFound, "notification not found")

	ErrAlreadyConnected = New(CodeAlreadyConnected, "a connection already exists between these users")
	ErrBlocked          = New(CodeBlocked, "one of the users has blocked the other")
	ErrServiceMismatch  = New(CodeServiceMismatch, "service does not belong to the target user")
	ErrSelfBlock        = New(CodeSelfBlock, "cannot block yourself")

	ErrSelfConnection    = Validation("cannot connect with yourself")
	ErrInvalidAction     = Validation("action must be accept or reject")
	ErrInvalidType       = Validation("invalid connection type")
	ErrInvalidMessage    = Validation("invalid message type")
	ErrEmptyContent      = Validation("message content cannot be empty")
	ErrContentTooLong    = Validation("message content is too long")
	ErrInvalidIdentifier = Validation("invalid identifier")
)
