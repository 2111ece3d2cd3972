package types

import "time"

type ResponseSendMessage struct {
	Status string `json:"status"`
	Sent   string `json:"sent"`
}

type ResponseQR struct {
	QRCode string `json:"qr_code"`
	Image  string `json:"image"`
}

type ResponseConnectionStatus struct {
	Connected bool      `json:"connected"`
	State     string    `json:"state"`
	QR        string    `json:"qr,omitempty"`
	JID       string    `json:"jid,omitempty"`
	Since     time.Time `json:"since"`
	Message   string    `json:"message"`
}

type ResponseHealth struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}
