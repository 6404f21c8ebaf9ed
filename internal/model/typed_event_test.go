package model

import (
	"encoding/json"
	"testing"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		User:      "0x1111111111111111111111111111111111111111",
		TokenIn:   "0x2222222222222222222222222222222222222222",
		TokenOut:  "0x3333333333333333333333333333333333333333",
		AmountIn:  "12345678901234567890",
		AmountOut: "42",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if _, ok := decoded["amount_in"].(string); !ok {
		t.Fatalf("amount_in should be string")
	}
	if _, ok := decoded["amount_out"].(string); !ok {
		t.Fatalf("amount_out should be string")
	}
}

func TestTypedEventRecordPayload(t *testing.T) {
	ev := TypedEvent{
		BlockNumber: 100,
		TxHash:      "0xabc",
		LogIndex:    4,
		EventName:   EventCollateralLocked,
		Decoded: CollateralLockedData{
			Account:          "0x1111111111111111111111111111111111111111",
			CollateralAmount: "1000",
			MintedAmount:     "500",
		},
	}
	rec, err := ev.Record()
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if rec.EventID() != "0xabc-4" {
		t.Fatalf("unexpected event id %s", rec.EventID())
	}

	var got CollateralLockedData
	if err := rec.Payload(&got); err != nil {
		t.Fatalf("payload failed: %v", err)
	}
	if got.MintedAmount != "500" || got.CollateralAmount != "1000" {
		t.Fatalf("unexpected payload %+v", got)
	}

	rec.Decoded = nil
	if err := rec.Payload(&got); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
