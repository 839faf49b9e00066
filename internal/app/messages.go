package app

import "rhystmorgan/mira/internal/models"

// FetchedMsg carries the result of the startup load back to the event loop.
type FetchedMsg struct {
	Payload []models.Fields
	Err     error
}

// PersistedMsg reports the outcome of one save.
type PersistedMsg struct {
	Count int
	Err   error
}
