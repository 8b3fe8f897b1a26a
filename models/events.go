package models

import "time"

// Event records the time a spend session moved to a new state. The rows
// form the history shown by the status command.
type Event struct {
	ID      uint      `gorm:"primary_key" json:"-"`
	SpendID SpendID   `gorm:"index" json:"spendID"`
	Name    string    `json:"name"`
	Detail  string    `json:"detail,omitempty"`
	Time    time.Time `json:"time"`
}
