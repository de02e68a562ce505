package main

import (
	"context"

	"gitlab.com/dirk.krummacker/location-contacts/pkg/model"
)

// sampleRepository is the part of the store that loading sample data needs.
type sampleRepository interface {
	Insert(ctx context.Context, userID string, input model.NewContact) (model.Contact, error)
	ListByUser(ctx context.Context, userID string) ([]model.Contact, error)
}

func text(s string) *string {
	return &s
}

func coordinate(v float64) *float64 {
	return &v
}

func date(s string) *model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

// sampleContacts are people met around Fullerton, California.
var sampleContacts = []model.NewContact{
	{
		FirstName:    text("John"),
		LastName:     text("Doe"),
		Email:        text("john.doe@example.com"),
		PhoneNumber:  text("(555) 123-4567"),
		Company:      text("Tech Corp"),
		JobTitle:     text("Software Engineer"),
		Latitude:     coordinate(33.8703),
		Longitude:    coordinate(-117.9243),
		LocationName: text("Coffee Shop on Harbor Blvd"),
		Notes:        text("Met at the tech conference, very interested in AI"),
	},
	{
		FirstName:      text("Sarah"),
		LastName:       text("Johnson"),
		Email:          text("sarah.j@example.com"),
		PhoneNumber:    text("(555) 234-5678"),
		PhoneNumberAlt: text("(555) 234-5679"),
		Company:        text("Design Studio"),
		JobTitle:       text("Creative Director"),
		PetName:        text("Max"),
		PetType:        text("Golden Retriever"),
		Latitude:       coordinate(33.8821),
		Longitude:      coordinate(-117.8886),
		LocationName:   text("Downtown Fullerton Restaurant"),
		Notes:          text("Loves hiking and outdoor photography"),
	},
	{
		FirstName:     text("Michael"),
		LastName:      text("Chen"),
		Email:         text("mchen@example.com"),
		PhoneNumber:   text("(555) 345-6789"),
		Company:       text("StartupXYZ"),
		JobTitle:      text("Founder & CEO"),
		SpouseName:    text("Emily Chen"),
		ChildrenNames: text("Jake, Lily"),
		Latitude:      coordinate(33.8634),
		Longitude:     coordinate(-117.9264),
		LocationName:  text("Cal State Fullerton Campus"),
		Notes:         text("Looking for investment opportunities in ed-tech"),
	},
	{
		FirstName:    text("Emma"),
		LastName:     text("Williams"),
		Email:        text("emma.w@example.com"),
		PhoneNumber:  text("(555) 456-7890"),
		Company:      text("Marketing Pro"),
		JobTitle:     text("Marketing Manager"),
		PetName:      text("Whiskers"),
		PetType:      text("Cat"),
		Birthday:     date("1990-05-15"),
		Latitude:     coordinate(33.8753),
		Longitude:    coordinate(-117.9200),
		LocationName: text("Fullerton Arboretum"),
		Notes:        text("Expert in social media marketing, helped with campaign ideas"),
	},
	{
		FirstName:    text("David"),
		LastName:     text("Martinez"),
		PhoneNumber:  text("(555) 567-8901"),
		Company:      text("Real Estate Group"),
		JobTitle:     text("Real Estate Agent"),
		SpouseName:   text("Lisa Martinez"),
		Anniversary:  date("2015-06-20"),
		Latitude:     coordinate(33.8580),
		Longitude:    coordinate(-117.9120),
		LocationName: text("Fullerton Community Center"),
		Notes:        text("Knows the local market very well, helped find office space"),
	},
	{
		FirstName:    text("Lisa"),
		PetName:      text("Buddy"),
		PetType:      text("Labrador"),
		Latitude:     coordinate(33.8690),
		Longitude:    coordinate(-117.9280),
		LocationName: text("Dog Park on Chapman Ave"),
		Notes:        text("Met at dog park, friendly neighbor"),
	},
}

// insertSamples adds the sample contacts the user does not have yet. A contact counts as present
// when first name and location name match.
func insertSamples(ctx context.Context, contacts sampleRepository, userID string) (int, error) {
	existing, err := contacts.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	present := make(map[[2]string]bool, len(existing))
	for _, c := range existing {
		present[sampleKey(c.FirstName, c.LocationName)] = true
	}

	inserted := 0
	for _, sample := range sampleContacts {
		if present[sampleKey(sample.FirstName, sample.LocationName)] {
			continue
		}
		if _, err := contacts.Insert(ctx, userID, sample); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func sampleKey(firstName, locationName *string) [2]string {
	var key [2]string
	if firstName != nil {
		key[0] = *firstName
	}
	if locationName != nil {
		key[1] = *locationName
	}
	return key
}
