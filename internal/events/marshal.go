package events

import "encoding/json"

func marshalPayload(payload any) (string, error) {
	if payload == nil {
		return "{}", nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "{}", err
	}
	return string(b), nil
}
