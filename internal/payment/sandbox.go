package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// StatusSource decides how a sandbox customer's payment attempt ends.
type StatusSource interface {
	NextStatus() (IntentStatus, string)
}

// RandomStatus succeeds 95% of the time.
type RandomStatus struct{}

func (RandomStatus) NextStatus() (IntentStatus, string) {
	return calcStatus(rand.Intn(101)) // 101 because Intn is exclusive of the upper bound
}

var declineReasons = []string{
	"Your card was declined.",
	"Your card has insufficient funds.",
	"Your card has expired.",
	"Your card's security code is incorrect.",
}

func calcStatus(n int) (IntentStatus, string) {
	if n < 95 {
		return StatusSucceeded, ""
	}
	reason := n - 95
	if reason == 0 || reason > len(declineReasons) {
		return StatusCanceled, "payment canceled by processor"
	}
	return StatusRequiresPaymentMethod, declineReasons[reason-1]
}

// FixedStatus always ends the attempt the same way.
type FixedStatus struct {
	Status    IntentStatus
	LastError string
}

func (f FixedStatus) NextStatus() (IntentStatus, string) {
	return f.Status, f.LastError
}

type sandboxIntent struct {
	state    IntentState
	resolved bool
}

// SandboxProcessor keeps intents in memory. The first status read after creation
// plays the customer's attempt through the StatusSource.
type SandboxProcessor struct {
	mu      sync.Mutex
	intents map[string]*sandboxIntent
	byKey   map[string]string
	source  StatusSource
}

func NewSandboxProcessor(source StatusSource) *SandboxProcessor {
	if source == nil {
		source = RandomStatus{}
	}
	return &SandboxProcessor{
		intents: make(map[string]*sandboxIntent),
		byKey:   make(map[string]string),
		source:  source,
	}
}

func (p *SandboxProcessor) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if err := req.Validate(); err != nil {
		return Intent{}, err
	}
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "usd"
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		in := p.intents[id]
		return Intent{ID: id, ClientSecret: in.state.ClientSecret}, nil
	}

	id := "pi_sandbox_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	p.intents[id] = &sandboxIntent{state: IntentState{
		ID:           id,
		Status:       StatusRequiresPaymentMethod,
		Amount:       FromMinorUnits(MinorUnits(req.Amount)),
		Currency:     currency,
		ClientSecret: id + "_secret_" + uuid.NewString(),
	}}
	if req.IdempotencyKey != "" {
		p.byKey[req.IdempotencyKey] = id
	}
	return Intent{ID: id, ClientSecret: p.intents[id].state.ClientSecret}, nil
}

func (p *SandboxProcessor) IntentStatus(ctx context.Context, intentID string) (IntentState, error) {
	if err := ctx.Err(); err != nil {
		return IntentState{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	in, ok := p.intents[intentID]
	if !ok {
		return IntentState{}, fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
	}
	if !in.resolved {
		status, lastErr := p.source.NextStatus()
		in.state.Status = status
		in.state.LastError = lastErr
		// A decline leaves the intent open for another attempt.
		in.resolved = status != StatusRequiresPaymentMethod
	}
	return in.state, nil
}

// SetStatus forces the outcome of an intent.
func (p *SandboxProcessor) SetStatus(intentID string, status IntentStatus, lastErr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	in, ok := p.intents[intentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
	}
	in.state.Status = status
	in.state.LastError = lastErr
	in.resolved = true
	return nil
}
