package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// An empty EmployeeID subscribes to manager-wide notices.
type PushSubscription struct {
	Endpoint   string    `gorm:"primaryKey" json:"endpoint"`
	P256DH     string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth       string    `gorm:"not null" json:"auth"`
	EmployeeID string    `gorm:"size:64;index" json:"employeeId,omitempty"`
	CreatedAt  time.Time `gorm:"not null" json:"createdAt"`
}
