package types

type RequestSendMessage struct {
	ChatID  string `json:"chatId" form:"chatId"`
	Message string `json:"message" form:"message"`
}

type RequestQR struct {
	Format string `query:"format"`
}
