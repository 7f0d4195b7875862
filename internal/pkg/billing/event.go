package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	EventOrderCreated          = "order_created"
	EventSubscriptionCreated   = "subscription_created"
	EventSubscriptionUpdated   = "subscription_updated"
	EventSubscriptionCancelled = "subscription_cancelled"
	EventSubscriptionExpired   = "subscription_expired"
)

// MaxBoostHours caps a single boost at one leap year.
const MaxBoostHours = 24 * 366

var ErrInvalidPayload = errors.New("invalid webhook payload")

// WebhookPayload is the subset of the provider body the classifier reads.
type WebhookPayload struct {
	Meta struct {
		EventName  string     `json:"event_name"`
		WebhookID  string     `json:"webhook_id"`
		TestMode   bool       `json:"test_mode"`
		CustomData CustomData `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		ID         looseString `json:"id"`
		Type       string      `json:"type"`
		Attributes Attributes  `json:"attributes"`
	} `json:"data"`
}

// CustomData is the correlation data attached at checkout.
type CustomData struct {
	UserID    looseString `json:"user_id"`
	ServiceID looseString `json:"service_id"`
	Duration  looseString `json:"duration"`
}

type Attributes struct {
	Total          float64 `json:"total"`
	TotalFormatted string  `json:"total_formatted"`
	RenewsAt       string  `json:"renews_at"`
	FirstOrderItem *struct {
		ProductName string `json:"product_name"`
	} `json:"first_order_item"`
}

// looseString accepts a JSON string or number. Checkout custom data is
// free-form, so "72" and 72 are both seen in practice. Other JSON kinds
// decode to empty.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		*s = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*s = looseString(strings.TrimSpace(v))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*s = looseString(n.String())
	default:
		*s = ""
	}
	return nil
}

func (s looseString) String() string {
	return string(s)
}

// ParseWebhookPayload decodes the raw body.
func ParseWebhookPayload(raw []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p.Meta.EventName = strings.TrimSpace(p.Meta.EventName)
	p.Meta.WebhookID = strings.TrimSpace(p.Meta.WebhookID)
	return &p, nil
}

type IntentKind string

const (
	IntentBoostPurchase          IntentKind = "boost_purchase"
	IntentPlusPurchase           IntentKind = "plus_purchase"
	IntentSubscriptionActivated  IntentKind = "subscription_activated"
	IntentSubscriptionTerminated IntentKind = "subscription_terminated"
	IntentIgnored                IntentKind = "ignored"
)

// Intent is the closed set of effects a delivery can have.
type Intent interface {
	Kind() IntentKind
}

type BoostPurchase struct {
	ServiceID string
	UserID    string
	Hours     int
	Amount    float64
}

func (BoostPurchase) Kind() IntentKind { return IntentBoostPurchase }

// Duration is the promotion window purchased.
func (b BoostPurchase) Duration() time.Duration {
	return time.Duration(b.Hours) * time.Hour
}

type PlusPurchase struct {
	UserID      string
	ProductName string
	Amount      float64
}

func (PlusPurchase) Kind() IntentKind { return IntentPlusPurchase }

type SubscriptionActivated struct {
	UserID    string
	EventName string
	RenewsAt  time.Time
}

func (SubscriptionActivated) Kind() IntentKind { return IntentSubscriptionActivated }

type SubscriptionTerminated struct {
	UserID    string
	EventName string
}

func (SubscriptionTerminated) Kind() IntentKind { return IntentSubscriptionTerminated }

// Ignored is acknowledged without writes so the provider stops retrying.
type Ignored struct {
	EventName string
	Reason    string
}

func (Ignored) Kind() IntentKind { return IntentIgnored }

// Classify maps a payload to exactly one intent. An error is returned only
// for a recognized subscription event whose renewal timestamp is unusable.
func Classify(p *WebhookPayload) (Intent, error) {
	if p == nil {
		return Ignored{Reason: "empty payload"}, nil
	}
	name := p.Meta.EventName
	userID := p.Meta.CustomData.UserID.String()

	switch name {
	case EventOrderCreated:
		return classifyOrder(p), nil
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		if userID == "" {
			return Ignored{EventName: name, Reason: "missing user_id"}, nil
		}
		renewsAt, err := parseProviderTime(p.Data.Attributes.RenewsAt)
		if err != nil {
			return nil, fmt.Errorf("%w: renews_at: %v", ErrInvalidPayload, err)
		}
		return SubscriptionActivated{UserID: userID, EventName: name, RenewsAt: renewsAt}, nil
	case EventSubscriptionCancelled, EventSubscriptionExpired:
		if userID == "" {
			return Ignored{EventName: name, Reason: "missing user_id"}, nil
		}
		return SubscriptionTerminated{UserID: userID, EventName: name}, nil
	default:
		return Ignored{EventName: name, Reason: "unhandled event"}, nil
	}
}

func classifyOrder(p *WebhookPayload) Intent {
	cd := p.Meta.CustomData
	attrs := p.Data.Attributes
	amount := minorToMajor(attrs.Total)

	if serviceID := cd.ServiceID.String(); serviceID != "" {
		hours, ok := boostHours(cd.Duration.String())
		if !ok {
			return Ignored{EventName: EventOrderCreated, Reason: "boost without a valid duration"}
		}
		return BoostPurchase{
			ServiceID: serviceID,
			UserID:    cd.UserID.String(),
			Hours:     hours,
			Amount:    amount,
		}
	}

	userID := cd.UserID.String()
	if userID == "" {
		return Ignored{EventName: EventOrderCreated, Reason: "missing user_id and service_id"}
	}
	product := ""
	if attrs.FirstOrderItem != nil {
		product = strings.TrimSpace(attrs.FirstOrderItem.ProductName)
	}
	if !isPlusProduct(product) {
		return Ignored{EventName: EventOrderCreated, Reason: "unrecognized product"}
	}
	return PlusPurchase{UserID: userID, ProductName: product, Amount: amount}
}

func isPlusProduct(name string) bool {
	return strings.Contains(strings.ToLower(name), "plus")
}

// boostHours accepts a whole number of hours in (0, MaxBoostHours].
func boostHours(raw string) (int, bool) {
	h, err := strconv.Atoi(raw)
	if err != nil || h <= 0 || h > MaxBoostHours {
		return 0, false
	}
	return h, true
}

// minorToMajor converts cents to a two-decimal amount.
func minorToMajor(total float64) float64 {
	return math.Round(total) / 100
}

func parseProviderTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	return time.Parse(time.RFC3339Nano, raw)
}
