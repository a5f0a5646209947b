package core

import (
	"strings"

	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"
)

const (
	ThankYou       MessageType = "Thank You"
	DonationAppeal MessageType = "Donation Appeal"
	RenewalAsk     MessageType = "Renewal Ask"
)

// MessageType selects the kind of fundraising email to draft.
type MessageType string

// MessageTypes lists the supported types in selector order.
var MessageTypes = []MessageType{ThankYou, DonationAppeal, RenewalAsk}

var validate = validator.New()

// ParseMessageType matches s against the supported types, ignoring case and
// surrounding whitespace.
func ParseMessageType(s string) (MessageType, error) {
	s = strings.TrimSpace(s)
	for _, mt := range MessageTypes {
		if strings.EqualFold(s, string(mt)) {
			return mt, nil
		}
	}
	return "", ErrInvalidMessageType
}

func (m MessageType) IsValid() bool {
	for _, mt := range MessageTypes {
		if m == mt {
			return true
		}
	}
	return false
}

// ComposeRequest is the input of the message composer.
type ComposeRequest struct {
	DonorName    string          `validate:"required,max=200"`
	TotalDonated decimal.Decimal `validate:"-"`
	MessageType  MessageType     `validate:"required"`
	Context      string          `validate:"max=2000"`
}

// Validate checks the request before it is sent to the composer.
func (r ComposeRequest) Validate() error {
	var fields []string
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
		} else {
			return err
		}
	}
	if strings.TrimSpace(r.DonorName) == "" && !containsPrefix(fields, "DonorName") {
		fields = append(fields, "DonorName (required)")
	}
	if r.MessageType != "" && !r.MessageType.IsValid() {
		fields = append(fields, "MessageType (oneof)")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
