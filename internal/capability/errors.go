package capability

import "errors"

// Registry errors.
var (
	// ErrUnknownCollaborator is returned for ids that were never declared.
	ErrUnknownCollaborator = errors.New("unknown collaborator")

	// ErrAlreadyDeclared is returned when an id is declared twice.
	ErrAlreadyDeclared = errors.New("collaborator already declared")
)
