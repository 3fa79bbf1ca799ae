package neat

import "errors"

var (
	// ErrNotFound reports a lookup of a neuron, connection, network or species ID that does not exist.
	// It signals a broken invariant and halts generation advancement.
	ErrNotFound = errors.New("not found")

	// ErrStructuralConflict reports an edit that would duplicate an existing edge or innovation,
	// or that violates the role of a neuron (e.g. a connection into an input).
	ErrStructuralConflict = errors.New("structural conflict")

	// ErrRetryExhausted reports a randomized selection that found no valid candidate.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrCycle reports a cycle among feed-forward connections.
	ErrCycle = errors.New("feed-forward cycle")

	// ErrTemplateMismatch reports networks or templates whose input and action neurons disagree.
	ErrTemplateMismatch = errors.New("neuron template mismatch")

	// ErrExtinct reports a generation that left no network to breed from.
	ErrExtinct = errors.New("population extinct")
)
