package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fastygo/ledger/domain"
)

// DecodeCommand parses an externally tagged command body such as
// {"DepositMoney":{"amount":1000}}. Exactly one variant key is allowed.
func DecodeCommand(body []byte) (domain.Command, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(body, &tagged); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "malformed command body", err)
	}
	if len(tagged) != 1 {
		return nil, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("command body must have exactly one variant, got %d", len(tagged)))
	}

	for name, raw := range tagged {
		switch name {
		case "OpenAccount":
			var cmd domain.OpenAccount
			if err := decodeVariant(name, raw, &cmd); err != nil {
				return nil, err
			}
			return cmd, nil
		case "DepositMoney":
			var cmd domain.DepositMoney
			if err := decodeVariant(name, raw, &cmd); err != nil {
				return nil, err
			}
			return cmd, nil
		case "WithdrawMoney":
			var cmd domain.WithdrawMoney
			if err := decodeVariant(name, raw, &cmd); err != nil {
				return nil, err
			}
			return cmd, nil
		case "WriteCheck":
			var cmd domain.WriteCheck
			if err := decodeVariant(name, raw, &cmd); err != nil {
				return nil, err
			}
			return cmd, nil
		default:
			return nil, domain.WrapError(domain.ErrCodeInvalid, "unknown command "+name, domain.ErrUnknownCommand)
		}
	}
	return nil, domain.ErrUnknownCommand
}

func decodeVariant(name string, raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "malformed "+name+" body", err)
	}
	return nil
}

// ProjectionPending is returned with 202 when the command committed but the
// read model has not caught up yet.
type ProjectionPending struct {
	Sequence    int64    `json:"sequence"`
	Projections []string `json:"projections,omitempty"`
}
