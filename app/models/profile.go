package models

// Profile is the optional public-facing profile for a user.
type Profile struct {
	UserID   string `db:"user_id" json:"userId"`
	Name     string `db:"name" json:"name"`
	Bio      string `db:"bio" json:"bio"`
	IsPublic bool   `db:"is_public" json:"isPublic"`
}
