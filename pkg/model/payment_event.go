package model

import "time"

// PaymentEvent records a gateway webhook delivery that has already been
// processed. The unique _id insert is the duplicate-delivery guard: a replay
// of the same gateway event id fails the insert and is acknowledged without
// re-running the transition.
type PaymentEvent struct {
	ID         string    `json:"id" bson:"_id"`
	PaymentRef string    `json:"payment_ref" bson:"payment_ref"`
	Type       string    `json:"type" bson:"type"`
	ReceivedAt time.Time `json:"received_at" bson:"received_at"`
}
