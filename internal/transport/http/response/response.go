package response

// ErrorBody 所有失败响应统一为 {"error": "..."}
type ErrorBody struct {
	Error string `json:"error"`
}

// MessageBody 无数据的成功响应
type MessageBody struct {
	Message string `json:"message"`
}

func Error(status int, customMsg string) ErrorBody {
	msg := customMsg
	if msg == "" {
		msg = StatusText(status)
	}
	return ErrorBody{Error: msg}
}

func Message(msg string) MessageBody { return MessageBody{Message: msg} }
