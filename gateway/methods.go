package gateway

import (
	"context"
	"fmt"
	"strings"

	"kinder-payment-svc/models"
	"kinder-payment-svc/validation"

	"github.com/google/uuid"
)

type methodResult struct {
	TransactionID string
	Status        models.PaymentStatus
}

type methodHandler func(ctx context.Context, req models.PaymentRequest) (methodResult, error)

func (g *Gateway) defaultHandlers() map[models.PaymentMethod]methodHandler {
	return map[models.PaymentMethod]methodHandler{
		models.PaymentMethodCreditCard:   g.processCreditCard,
		models.PaymentMethodBankTransfer: g.processBankTransfer,
		models.PaymentMethodPayPal:       g.processPayPal,
		models.PaymentMethodCash:         g.processCash,
	}
}

func (g *Gateway) processCreditCard(ctx context.Context, req models.PaymentRequest) (methodResult, error) {
	switch {
	case req.CardNumber == "":
		return methodResult{}, missing("card_number")
	case req.ExpiryDate == "":
		return methodResult{}, missing("expiry_date")
	case req.CVV == "":
		return methodResult{}, missing("cvv")
	case !validation.IsValidCreditCard(req.CardNumber):
		return methodResult{}, invalid("card_number")
	case !validation.IsValidExpiryDate(req.ExpiryDate):
		return methodResult{}, &ValidationError{Field: "expiry_date", Message: "card has expired or date is invalid"}
	case !validation.IsValidCVV(req.CVV):
		return methodResult{}, invalid("cvv")
	}

	if err := g.simulateProcessing(ctx); err != nil {
		return methodResult{}, err
	}
	return methodResult{TransactionID: g.newTransactionID("cc"), Status: models.PaymentStatusPaid}, nil
}

func (g *Gateway) processBankTransfer(ctx context.Context, req models.PaymentRequest) (methodResult, error) {
	switch {
	case req.BankAccount == "":
		return methodResult{}, missing("bank_account")
	case req.RoutingNumber == "":
		return methodResult{}, missing("routing_number")
	case req.AccountHolder == "":
		return methodResult{}, missing("account_holder")
	case !validation.IsValidAccountNumber(req.BankAccount):
		return methodResult{}, invalid("bank_account")
	case !validation.IsValidRoutingNumber(req.RoutingNumber):
		return methodResult{}, invalid("routing_number")
	}

	if err := g.simulateProcessing(ctx); err != nil {
		return methodResult{}, err
	}
	return methodResult{TransactionID: g.newTransactionID("bt"), Status: models.PaymentStatusPaid}, nil
}

func (g *Gateway) processPayPal(ctx context.Context, req models.PaymentRequest) (methodResult, error) {
	switch {
	case req.PayPalEmail == "":
		return methodResult{}, missing("paypal_email")
	case !validation.IsValidEmail(req.PayPalEmail):
		return methodResult{}, invalid("paypal_email")
	}

	if err := g.simulateProcessing(ctx); err != nil {
		return methodResult{}, err
	}
	return methodResult{TransactionID: g.newTransactionID("pp"), Status: models.PaymentStatusPaid}, nil
}

// Cash is registered as pending until an administrator collects it.
func (g *Gateway) processCash(ctx context.Context, _ models.PaymentRequest) (methodResult, error) {
	if err := ctx.Err(); err != nil {
		return methodResult{}, err
	}
	return methodResult{TransactionID: g.newTransactionID("cash"), Status: models.PaymentStatusPending}, nil
}

func (g *Gateway) simulateProcessing(ctx context.Context) error {
	return g.sleep(ctx, g.cfg.ProcessingDelay)
}

// newTransactionID returns <prefix>_<unix millis>_<9 random chars>.
func (g *Gateway) newTransactionID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, g.now().UnixMilli(), randomSuffix())
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
