package models

// Customer is the storefront identity behind a Telegram account.
type Customer struct {
	ID       string
	TgUserID int64
	Name     string
	SignedIn bool
}
