package types

type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderInner  PaymentProvider = "inner"
)

// PriceItem maps a provider price to the plan it unlocks.
type PriceItem struct {
	ID              string          `json:"id" mapstructure:"id"`
	ProviderID      PaymentProvider `json:"provider_id" mapstructure:"provider_id"`
	ProviderPriceID string          `json:"provider_price_id" mapstructure:"provider_price_id"`
	Plan            Plan            `json:"plan" mapstructure:"plan"`
}
