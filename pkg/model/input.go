package model

// NewContact is the request body for creating a contact. Latitude and longitude are mandatory,
// everything else is optional.
type NewContact struct {
	FirstName      *string  `json:"firstName"      binding:"omitempty,max=255"`
	LastName       *string  `json:"lastName"       binding:"omitempty,max=255"`
	Email          *string  `json:"email"          binding:"omitempty,max=255"`
	PhoneNumber    *string  `json:"phoneNumber"    binding:"omitempty,max=50"`
	PhoneNumberAlt *string  `json:"phoneNumberAlt" binding:"omitempty,max=50"`
	Company        *string  `json:"company"        binding:"omitempty,max=255"`
	JobTitle       *string  `json:"jobTitle"       binding:"omitempty,max=255"`
	Address        *string  `json:"address"`
	PetName        *string  `json:"petName"        binding:"omitempty,max=255"`
	PetType        *string  `json:"petType"        binding:"omitempty,max=100"`
	SpouseName     *string  `json:"spouseName"     binding:"omitempty,max=255"`
	ChildrenNames  *string  `json:"childrenNames"`
	Birthday       *Date    `json:"birthday"`
	Anniversary    *Date    `json:"anniversary"`
	Notes          *string  `json:"notes"`
	Latitude       *float64 `json:"latitude"       binding:"required,min=-90,max=90"`
	Longitude      *float64 `json:"longitude"      binding:"required,min=-180,max=180"`
	LocationName   *string  `json:"locationName"   binding:"omitempty,max=500"`
}

// HasCoordinates reports whether both coordinates were supplied.
func (n *NewContact) HasCoordinates() bool {
	return n.Latitude != nil && n.Longitude != nil
}

// Normalize turns empty strings and zero dates into absent values.
func (n *NewContact) Normalize() {
	for _, field := range []**string{
		&n.FirstName, &n.LastName, &n.Email, &n.PhoneNumber, &n.PhoneNumberAlt, &n.Company,
		&n.JobTitle, &n.Address, &n.PetName, &n.PetType, &n.SpouseName, &n.ChildrenNames,
		&n.Notes, &n.LocationName,
	} {
		if *field != nil && *(*field) == "" {
			*field = nil
		}
	}
	for _, field := range []**Date{&n.Birthday, &n.Anniversary} {
		if *field != nil && (*field).IsZero() {
			*field = nil
		}
	}
}

// ContactPatch is the request body for a merge-on-write update: every non-nil field overwrites
// the stored value, nil fields keep it. A present empty string clears the stored value.
type ContactPatch struct {
	FirstName      *string  `json:"firstName"      binding:"omitempty,max=255"`
	LastName       *string  `json:"lastName"       binding:"omitempty,max=255"`
	Email          *string  `json:"email"          binding:"omitempty,max=255"`
	PhoneNumber    *string  `json:"phoneNumber"    binding:"omitempty,max=50"`
	PhoneNumberAlt *string  `json:"phoneNumberAlt" binding:"omitempty,max=50"`
	Company        *string  `json:"company"        binding:"omitempty,max=255"`
	JobTitle       *string  `json:"jobTitle"       binding:"omitempty,max=255"`
	Address        *string  `json:"address"`
	PetName        *string  `json:"petName"        binding:"omitempty,max=255"`
	PetType        *string  `json:"petType"        binding:"omitempty,max=100"`
	SpouseName     *string  `json:"spouseName"     binding:"omitempty,max=255"`
	ChildrenNames  *string  `json:"childrenNames"`
	Birthday       *Date    `json:"birthday"`
	Anniversary    *Date    `json:"anniversary"`
	Notes          *string  `json:"notes"`
	Latitude       *float64 `json:"latitude"       binding:"omitempty,min=-90,max=90"`
	Longitude      *float64 `json:"longitude"      binding:"omitempty,min=-180,max=180"`
	LocationName   *string  `json:"locationName"   binding:"omitempty,max=500"`
}

// Assignment is one column to overwrite in an update.
type Assignment struct {
	Column string
	Value  any
}

// Assignments lists the columns the patch overwrites, in a stable column order. Empty strings
// and zero dates become NULL.
func (p *ContactPatch) Assignments() []Assignment {
	var result []Assignment
	text := func(column string, value *string) {
		if value == nil {
			return
		}
		if *value == "" {
			result = append(result, Assignment{column, nil})
			return
		}
		result = append(result, Assignment{column, *value})
	}
	date := func(column string, value *Date) {
		if value == nil {
			return
		}
		if value.IsZero() {
			result = append(result, Assignment{column, nil})
			return
		}
		result = append(result, Assignment{column, *value})
	}
	text("first_name", p.FirstName)
	text("last_name", p.LastName)
	text("email", p.Email)
	text("phone_number", p.PhoneNumber)
	text("phone_number_alt", p.PhoneNumberAlt)
	text("company", p.Company)
	text("job_title", p.JobTitle)
	text("address", p.Address)
	text("pet_name", p.PetName)
	text("pet_type", p.PetType)
	text("spouse_name", p.SpouseName)
	text("children_names", p.ChildrenNames)
	date("birthday", p.Birthday)
	date("anniversary", p.Anniversary)
	text("notes", p.Notes)
	if p.Latitude != nil {
		result = append(result, Assignment{"latitude", RoundCoordinate(*p.Latitude)})
	}
	if p.Longitude != nil {
		result = append(result, Assignment{"longitude", RoundCoordinate(*p.Longitude)})
	}
	text("location_name", p.LocationName)
	return result
}
