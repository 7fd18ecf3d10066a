package models

// Hooks for the external test package.
var (
	SaveChitVersioned = saveChitVersioned
	NextChitNumber    = nextChitNumber
)
