package strategy

import (
	"strings"

	"entrypass/internal/submission/validation"
	"entrypass/internal/traveler"
	dErrors "entrypass/pkg/domain-errors"
)

// Payload is the JSON body posted to a destination submission endpoint.
// Blank optional fields are omitted.
type Payload struct {
	DestinationID string            `json:"destinationId"`
	Fields        map[string]string `json:"fields"`
	Funds         []PayloadFund     `json:"funds,omitempty"`
}

type PayloadFund struct {
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// NewPayload serializes validated traveler data.
func NewPayload(data traveler.Data) Payload {
	fields := make(map[string]string)
	for name, value := range data.Fields() {
		if v := strings.TrimSpace(value); v != "" {
			fields[name] = v
		}
	}
	p := Payload{DestinationID: data.DestinationID, Fields: fields}
	for _, f := range data.Funds {
		p.Funds = append(p.Funds, PayloadFund{Type: f.Type, Amount: f.Amount, Currency: f.Currency})
	}
	return p
}

func validationError(res validation.Result) error {
	return dErrors.New(dErrors.CodeValidation, "invalid fields: "+strings.Join(res.FieldNames(), ", "))
}
