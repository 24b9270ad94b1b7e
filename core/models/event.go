package models

import "time"

// LookupEvent represents a phase transition of a comparison lookup
type LookupEvent struct {
	ID        int64
	Key       string
	At        time.Time
	FromPhase *Phase
	ToPhase   Phase
	Reason    string
	MetaJSON  map[string]interface{} // Additional metadata
}
