// Package agents defines the sub-agent capability contract and the built-in
// crypto and media agents. Agents own their background subsystems and expose
// intelligence to the orchestrator through Context; they never talk to the
// orchestrator directly.
package agents

import "context"

// Agent is one specialised capability the orchestrator can draw on.
//
// Context must never return an error: an agent that cannot produce intel
// returns a placeholder string instead, so one broken subsystem never blocks
// a reply. ProcessTask acknowledges immediately and runs any real work in
// the background.
type Agent interface {
	// ID is the stable identifier used for persisted agent configuration.
	ID() string

	// Start launches the agent's background subsystems. It returns once
	// they are running; they stop when ctx is cancelled or Stop is called.
	Start(ctx context.Context)

	// Stop signals background subsystems to shut down.
	Stop()

	// Context returns the agent's current intelligence digest.
	Context(ctx context.Context) string

	// ProcessTask handles a delegated command and returns an immediate
	// acknowledgement.
	ProcessTask(ctx context.Context, command string) string

	// Keywords lists the trigger words that route a message to this agent.
	Keywords() []string
}
