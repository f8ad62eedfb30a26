package protocol

import (
	"sort"
	"strconv"
	"sync"

	"github.com/wagiedev/bridge-sdk-go/internal/errors"
	"github.com/wagiedev/bridge-sdk-go/internal/message"
)

// Pending is an in-flight transaction: the command that opened it, the
// responses received so far, and a completion signal.
//
// All fields except done are guarded by the owning Registry's mutex.
type Pending struct {
	command   *message.Command
	responses []*message.Response
	completed bool
	done      chan struct{}
}

// Command returns the command that opened the transaction.
func (p *Pending) Command() *message.Command {
	return p.command
}

// Done returns a channel that is closed when the final response arrives.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Registry maps transaction IDs to pending transactions.
//
// Every method takes the registry's lock for a short, non-blocking critical
// section, so the response router can call them without stalling.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Pending
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[string]*Pending, 10),
	}
}

// Register opens a transaction for cmd.
//
// Returns DuplicateTransactionError if the ID is already pending.
func (r *Registry) Register(cmd *message.Command) (*Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[cmd.TransactionID]; exists {
		return nil, &errors.DuplicateTransactionError{TransactionID: cmd.TransactionID}
	}

	p := &Pending{
		command: cmd,
		done:    make(chan struct{}),
	}
	r.pending[cmd.TransactionID] = p

	return p, nil
}

// Append adds resp to the transaction id.
//
// Returns false, without side effects, when the transaction is unknown,
// already removed, or already completed.
func (r *Registry) Append(id string, resp *message.Response) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.pending[id]
	if !exists || p.completed {
		return false
	}

	p.responses = append(p.responses, resp)

	return true
}

// Complete resolves the transaction id. Only the first call for a pending
// transaction has an effect; it reports whether this call resolved it.
func (r *Registry) Complete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.pending[id]
	if !exists || p.completed {
		return false
	}

	p.completed = true
	close(p.done)

	return true
}

// Remove deletes a completed transaction and returns its responses.
//
// Returns UnknownTransactionError if the transaction is not pending or has
// not completed yet.
func (r *Registry) Remove(id string) ([]*message.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.pending[id]
	if !exists || !p.completed {
		return nil, &errors.UnknownTransactionError{TransactionID: id}
	}

	delete(r.pending, id)

	return p.responses, nil
}

// Abandon deletes the transaction id whether or not it completed. Responses
// arriving afterwards are orphans. Reports whether an entry was removed.
func (r *Registry) Abandon(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.pending[id]
	delete(r.pending, id)

	return exists
}

// Len returns the number of pending transactions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// IDs returns the pending transaction IDs in allocation order.
func (r *Registry) IDs() []string {
	r.mu.Lock()

	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}

	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.ParseUint(ids[i], 10, 64)
		b, _ := strconv.ParseUint(ids[j], 10, 64)

		return a < b
	})

	return ids
}
