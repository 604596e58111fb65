package bot

import (
	"context"

	"unieats/models"

	"github.com/sirupsen/logrus"
)

// Customers maps Telegram users to customer accounts.
type Customers interface {
	EnsureCustomer(ctx context.Context, tgUserID int64, name string) (*models.Customer, error)
	GetCustomer(ctx context.Context, tgUserID int64) (*models.Customer, error)
	SetSignedIn(ctx context.Context, tgUserID int64, signedIn bool) error
}

type tgUserKey struct{}

func withTelegramUser(ctx context.Context, tgUserID int64) context.Context {
	return context.WithValue(ctx, tgUserKey{}, tgUserID)
}

// CustomerIdentity resolves the Telegram user carried in the context to a
// signed-in customer id. It satisfies checkout.Identity.
type CustomerIdentity struct {
	customers Customers
	log       logrus.FieldLogger
}

func NewCustomerIdentity(customers Customers, log logrus.FieldLogger) *CustomerIdentity {
	return &CustomerIdentity{customers: customers, log: log}
}

// UserID is ok only for a signed-in customer. Lookup errors count as signed
// out, so the order goes through as a guest.
func (c *CustomerIdentity) UserID(ctx context.Context) (string, bool) {
	tgUserID, ok := ctx.Value(tgUserKey{}).(int64)
	if !ok {
		return "", false
	}
	cust, err := c.customers.GetCustomer(ctx, tgUserID)
	if err != nil {
		c.log.WithError(err).WithField("tg_user_id", tgUserID).Warn("identity lookup failed, ordering as guest")
		return "", false
	}
	if cust == nil || !cust.SignedIn {
		return "", false
	}
	return cust.ID, true
}
