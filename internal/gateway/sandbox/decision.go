package sandbox

import "math/rand/v2"

// Decision is the sandbox processor's answer to one sale.
type Decision struct {
	Approved bool
	Code     string
	Text     string
	// Status overrides the transaction status reported for a refusal.
	Status string
	// Fail makes the sandbox answer with a 500 instead of a decision.
	Fail bool
}

type DecisionSource interface {
	Decide(nonce string) Decision
}

var approved = Decision{Approved: true, Code: "1000", Text: "Approved"}

// refusals are indexed by the random draw above the approval threshold.
var refusals = []Decision{
	{Code: "2046", Text: "Declined"},
	{Code: "2001", Text: "Insufficient Funds"},
	{Code: "2004", Text: "Expired Card"},
	{Code: "2000", Text: "Do Not Honor"},
	{Code: "2002", Text: "Limit Exceeded"},
	{Code: "2014", Text: "Processor Declined - Fraud Suspected"},
}

// testNonces behave deterministically, whatever the random source says.
var testNonces = map[string]Decision{
	"fake-valid-nonce":                     approved,
	"fake-valid-visa-nonce":                approved,
	"fake-valid-mastercard-nonce":          approved,
	"fake-processor-declined-visa-nonce":   {Code: "2000", Text: "Do Not Honor"},
	"fake-insufficient-funds-nonce":        {Code: "2001", Text: "Insufficient Funds"},
	"fake-expired-card-nonce":              {Code: "2004", Text: "Expired Card"},
	"fake-gateway-rejected-fraud-nonce":    {Text: "Gateway Rejected: fraud", Status: "gateway_rejected"},
	"fake-processor-network-failure-nonce": {Fail: true},
}

// RandomDecisions approves 95% of unknown nonces.
type RandomDecisions struct{}

func (RandomDecisions) Decide(nonce string) Decision {
	if d, ok := testNonces[nonce]; ok {
		return d
	}
	return decide(rand.IntN(101)) // 101 because IntN is exclusive of the upper bound
}

func decide(randomInt int) Decision {
	if randomInt < 95 {
		return approved
	}
	reason := randomInt - 95
	if reason == 0 || reason > 5 {
		return refusals[0]
	}
	return refusals[reason]
}
