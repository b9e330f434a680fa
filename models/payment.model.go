package models

// PaymentResult is the receipt recorded when a payment is confirmed
type PaymentResult struct {
	ID           string `bson:"id" json:"id"`
	Status       string `bson:"status" json:"status"`
	UpdateTime   string `bson:"updateTime" json:"updateTime"`
	EmailAddress string `bson:"emailAddress" json:"emailAddress"`
}
