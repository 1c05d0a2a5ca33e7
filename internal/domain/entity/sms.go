package entity

import "time"

// SmsRecipient is a contact a bulk send may target
type SmsRecipient struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	SmsOptOut bool   `json:"sms_opt_out"`
}

// SmsMessage is the persisted record of one outbound message
type SmsMessage struct {
	ID                string    `json:"id"`
	BatchID           string    `json:"batch_id"`
	RecipientID       string    `json:"recipient_id,omitempty"`
	To                string    `json:"to"`
	Body              string    `json:"body"`
	MediaURLs         []string  `json:"media_urls,omitempty"`
	Segments          int       `json:"segments"`
	Encoding          string    `json:"encoding"`
	Status            string    `json:"status"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BulkSendResult aggregates the outcome of a bulk send
type BulkSendResult struct {
	BatchID string `json:"batch_id"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}
