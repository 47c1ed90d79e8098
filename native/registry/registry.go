package registry

import (
	"errors"
	"fmt"
	"math/big"

	"pactnet/core/events"
	"pactnet/core/types"
)

var (
	// ErrAlreadyRegistered marks a second registration attempt for an address.
	ErrAlreadyRegistered = errors.New("registry: already registered")

	errNilState  = errors.New("registry: state not configured")
	errNilMinter = errors.New("registry: minter not configured")
)

// EventTypeRegistered is emitted exactly once per account lifetime.
const EventTypeRegistered = "registry.registered"

type registryState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type minter interface {
	Mint(to [20]byte, amount *big.Int) error
}

// Registry tracks account activation. Registration is self-service: an
// account can only register itself, and the flag is monotonic. The
// owner-mediated variant seen elsewhere is deliberately not supported since
// it would let a privileged caller commit another account's fee budget.
type Registry struct {
	state   registryState
	minter  minter
	reward  *big.Int
	emitter events.Emitter
}

// NewRegistry constructs a registry granting reward credits on activation.
func NewRegistry(state registryState, minter minter, reward *big.Int) *Registry {
	granted := big.NewInt(0)
	if reward != nil && reward.Sign() > 0 {
		granted = new(big.Int).Set(reward)
	}
	return &Registry{state: state, minter: minter, reward: granted, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Register activates the caller's account and mints the one-time signup
// reward. The registered flag is set before the mint so a reward failure
// cannot leave a half-registered account observable: both writes share the
// substrate's transaction boundary.
func (r *Registry) Register(caller [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	account, err := r.state.GetAccount(caller)
	if err != nil {
		return err
	}
	if account.Registered {
		return ErrAlreadyRegistered
	}
	account.Registered = true
	if err := r.state.PutAccount(caller, account); err != nil {
		return err
	}
	if r.reward.Sign() > 0 {
		if r.minter == nil {
			return errNilMinter
		}
		if err := r.minter.Mint(caller, r.reward); err != nil {
			return err
		}
	}
	r.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeRegistered,
		Attributes: map[string]string{
			"account": fmt.Sprintf("%x", caller),
			"reward":  r.reward.String(),
		},
	}))
	return nil
}

// IsRegistered reports whether addr has been activated.
func (r *Registry) IsRegistered(addr [20]byte) (bool, error) {
	if r == nil || r.state == nil {
		return false, errNilState
	}
	account, err := r.state.GetAccount(addr)
	if err != nil {
		return false, err
	}
	return account.Registered, nil
}
