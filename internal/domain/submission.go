package domain

import (
	"time"

	"github.com/paulmach/orb"
)

const SubmissionPending = "pending"

// Submission is a candidate shop waiting for review. It is never visible to geo queries.
type Submission struct {
	ID               int64
	Ref              string // public uuid
	Name             string
	Address          string
	Area             string
	Location         orb.Point
	Rating           *float64
	WiFi             bool
	OutdoorSeating   bool
	Notes            string
	SubmittedByName  string
	SubmittedByEmail string
	Status           string
	SubmittedAt      time.Time
}
