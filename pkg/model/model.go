package model

import "time"

// Contact is the data structure for a person that we know, together with the place where we met
// them. All fields with the exception of Id, UserId, the coordinates and the timestamps are
// optional and serialized as null when absent.
type Contact struct {
	Id             string    `json:"id"             db:"id"`
	UserId         string    `json:"userId"         db:"user_id"`
	FirstName      *string   `json:"firstName"      db:"first_name"`
	LastName       *string   `json:"lastName"       db:"last_name"`
	Email          *string   `json:"email"          db:"email"`
	PhoneNumber    *string   `json:"phoneNumber"    db:"phone_number"`
	PhoneNumberAlt *string   `json:"phoneNumberAlt" db:"phone_number_alt"`
	Company        *string   `json:"company"        db:"company"`
	JobTitle       *string   `json:"jobTitle"       db:"job_title"`
	Address        *string   `json:"address"        db:"address"`
	PetName        *string   `json:"petName"        db:"pet_name"`
	PetType        *string   `json:"petType"        db:"pet_type"`
	SpouseName     *string   `json:"spouseName"     db:"spouse_name"`
	ChildrenNames  *string   `json:"childrenNames"  db:"children_names"`
	Birthday       *Date     `json:"birthday"       db:"birthday"`
	Anniversary    *Date     `json:"anniversary"    db:"anniversary"`
	Notes          *string   `json:"notes"          db:"notes"`
	Latitude       float64   `json:"latitude"       db:"latitude"`
	Longitude      float64   `json:"longitude"      db:"longitude"`
	LocationName   *string   `json:"locationName"   db:"location_name"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}

// NearbyContact is a contact found by a proximity search, with its great-circle distance to the
// search point.
type NearbyContact struct {
	Contact
	DistanceKm float64 `json:"distanceKm"`
}
