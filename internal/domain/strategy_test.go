package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestStrategyParameters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  StrategyParameters
		wantErr bool
	}{
		{name: "buy without thresholds", params: StrategyParameters{Action: ActionBuy, Price: 100, Quantity: 1}},
		{name: "buy with thresholds", params: StrategyParameters{Action: ActionBuy, Price: 100, Quantity: 1, StopLoss: ptr(95), TakeProfit: ptr(110)}},
		{name: "buy with only stop loss", params: StrategyParameters{Action: ActionBuy, Price: 100, Quantity: 1, StopLoss: ptr(95)}},
		{name: "hold needs nothing", params: StrategyParameters{Action: ActionHold}},
		{name: "sell needs nothing", params: StrategyParameters{Action: ActionSell}},
		{name: "unknown action", params: StrategyParameters{Action: "SHORT", Price: 1, Quantity: 1}, wantErr: true},
		{name: "zero price", params: StrategyParameters{Action: ActionBuy, Quantity: 1}, wantErr: true},
		{name: "negative quantity", params: StrategyParameters{Action: ActionBuy, Price: 100, Quantity: -1}, wantErr: true},
		{name: "zero stop loss", params: StrategyParameters{Action: ActionBuy, Price: 100, Quantity: 1, StopLoss: ptr(0)}, wantErr: true},
		{name: "negative take profit", params: StrategyParameters{Action: ActionBuy, Price: 100, Quantity: 1, TakeProfit: ptr(-5)}, wantErr: true},
		{name: "stop loss above take profit", params: StrategyParameters{Action: ActionBuy, Price: 100, Quantity: 1, StopLoss: ptr(120), TakeProfit: ptr(110)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParameters)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStrategy_Validate(t *testing.T) {
	valid := &Strategy{ID: "s", Symbol: "ETHUSDT", Confidence: 0.7, Parameters: StrategyParameters{Action: ActionHold}, CreatedAt: time.Now()}
	assert.NoError(t, valid.Validate())

	noSymbol := *valid
	noSymbol.Symbol = " "
	assert.ErrorIs(t, noSymbol.Validate(), ErrInvalidParameters)

	badConfidence := *valid
	badConfidence.Confidence = 1.5
	assert.ErrorIs(t, badConfidence.Validate(), ErrInvalidParameters)
}
