package entity

import "time"

// PaymentNotification records one payment webhook attempt for a teacher
type PaymentNotification struct {
	ID           int64      `json:"id"`
	PaymentID    string     `json:"payment_id"`
	RunID        string     `json:"run_id"`
	TeacherID    string     `json:"teacher_id"`
	Status       string     `json:"status"`
	TotalAmount  float64    `json:"total_amount"`
	TotalHours   float64    `json:"total_hours"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PaymentPayload is the JSON body posted to the payment webhook, one per teacher
type PaymentPayload struct {
	PaymentID     string            `json:"payment_id"`
	Teacher       PaymentTeacher    `json:"teacher"`
	Amounts       PaymentAmounts    `json:"amounts"`
	Period        PaymentPeriod     `json:"period"`
	LineItems     []PaymentLineItem `json:"line_items"`
	PaymentMethod string            `json:"payment_method"`
	Timestamp     time.Time         `json:"timestamp"`
}

// PaymentTeacher identifies the payee
type PaymentTeacher struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PaymentAmounts carries the teacher's totals for the run
type PaymentAmounts struct {
	Total float64 `json:"total"`
	Hours float64 `json:"hours"`
}

// PaymentPeriod is the pay period, formatted as dates
type PaymentPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PaymentLineItem is a line item as exposed to the payment webhook
type PaymentLineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Hours       float64 `json:"hours"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
	RateSource  string  `json:"rate_source"`
}
