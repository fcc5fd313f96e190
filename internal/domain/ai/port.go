package ai

import "context"

type Client interface {
	// WriteBrief turns a serialized analysis outcome into an investigator-readable
	// JSON brief for the named missing person.
	WriteBrief(ctx context.Context, personName, outcomeJSON string) (string, error)
}
