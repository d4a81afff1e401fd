package models

// IntentAction is the closed set of directional intents a strategy may emit.
type IntentAction string

const (
	IntentOpenLong   IntentAction = "OPEN_LONG"
	IntentOpenShort  IntentAction = "OPEN_SHORT"
	IntentCloseLong  IntentAction = "CLOSE_LONG"
	IntentCloseShort IntentAction = "CLOSE_SHORT"
	IntentNoAction   IntentAction = "NO_ACTION"
)

// Valid reports whether a is one of the known intents.
func (a IntentAction) Valid() bool {
	switch a {
	case IntentOpenLong, IntentOpenShort, IntentCloseLong, IntentCloseShort, IntentNoAction:
		return true
	}
	return false
}

// TradeIntent is a strategy's directional output. It carries no sizing.
type TradeIntent struct {
	Symbol string       `json:"symbol"`
	Action IntentAction `json:"action"`
	Reason string       `json:"reason,omitempty"`
}

// NoAction returns an intent that asks for nothing.
func NoAction(symbol, reason string) TradeIntent {
	return TradeIntent{Symbol: symbol, Action: IntentNoAction, Reason: reason}
}
