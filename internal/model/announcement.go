package model

import "time"

type Announcement struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Body      string    `json:"body"`
	AuthorID  string    `gorm:"size:64" json:"authorId"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Announcement) TableName() string { return string(TableAnnouncements) }

func (a Announcement) RecordID() string { return a.ID }
