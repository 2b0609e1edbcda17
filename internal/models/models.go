package models

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// ReservedUsername is kept free for the self-lookup endpoint /users/me.
const ReservedUsername = "me"

type User struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email     string `gorm:"uniqueIndex;size:254;not null" json:"email"`
	FirstName string `gorm:"size:150" json:"first_name"`
	LastName  string `gorm:"size:150" json:"last_name"`
	Bio       string `gorm:"size:200" json:"bio"`
	Role      string `gorm:"size:20;not null;default:user" json:"role"`
	Active    bool   `gorm:"not null;default:false" json:"-"`
}

type Category struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"size:30;not null" json:"name"`
	Slug string `gorm:"uniqueIndex;size:50;not null" json:"slug"`
}

type Genre struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"size:70;not null" json:"name"`
	Slug string `gorm:"uniqueIndex;size:50;not null" json:"slug"`
}

type Title struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:150;not null" json:"name"`
	Year        int       `gorm:"not null" json:"year"`
	Description string    `gorm:"size:200" json:"description"`
	Genres      []Genre   `gorm:"many2many:title_genres" json:"genres"`
	CategoryID  *uint     `json:"-"`
	Category    *Category `gorm:"constraint:OnDelete:SET NULL" json:"category"`
}

// Review carries a composite unique index on (title_id, author_id): the
// store, not the handler pre-check, is what guarantees one review per
// author per title under concurrent submissions.
type Review struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Text     string    `gorm:"size:250;not null" json:"text"`
	Score    int       `gorm:"not null" json:"score"`
	AuthorID uint      `gorm:"uniqueIndex:idx_review_title_author;not null" json:"author_id"`
	Author   User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	TitleID  uint      `gorm:"uniqueIndex:idx_review_title_author;not null" json:"title_id"`
	Title    Title     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PubDate  time.Time `gorm:"autoCreateTime" json:"pub_date"`
}

type Comment struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Text     string    `gorm:"size:250;not null" json:"text"`
	AuthorID uint      `gorm:"index;not null" json:"author_id"`
	Author   User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ReviewID uint      `gorm:"index;not null" json:"review_id"`
	Review   Review    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PubDate  time.Time `gorm:"autoCreateTime" json:"pub_date"`
}
