// Package travelertest builds traveler data for tests.
package travelertest

import (
	"github.com/google/uuid"

	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
)

// Complete returns data that satisfies every required field of the built-in
// TH destination, arriving on 2026-04-10.
func Complete() traveler.Data {
	return traveler.Data{
		EntryInfoID:   id.EntryInfoID(uuid.New()),
		DestinationID: "TH",
		Passport: traveler.Passport{
			PassportNo:  "K12345678",
			FamilyName:  "DOE",
			FirstName:   "JANE",
			Nationality: "GBR",
			DateOfBirth: "1990-05-17",
			Gender:      "FEMALE",
			ExpiryDate:  "2031-01-01",
		},
		PersonalInfo: traveler.PersonalInfo{
			Occupation:         "ENGINEER",
			Email:              "jane@example.com",
			PhoneCode:          "44",
			PhoneNumber:        "7700900123",
			CountryOfResidence: "GBR",
		},
		Travel: traveler.Travel{
			ArrivalDate:           "2026-04-10",
			DepartureDate:         "2026-04-24",
			FlightNo:              "TG917",
			TravelMode:            "AIR",
			PurposeOfTravel:       "HOLIDAY",
			BoardingCountry:       "GBR",
			AccommodationType:     "HOTEL",
			AccommodationProvince: "BANGKOK",
			AccommodationDistrict: "PATHUM WAN",
			AccommodationAddress:  "1 Rama I Road",
			AccommodationPostcode: "10330",
		},
		Funds: []traveler.FundItem{
			{ID: "fund-1", Type: "cash", Amount: 20000, Currency: "THB", PhotoPath: "photos/fund-1.jpg"},
		},
	}
}

// WithEntryInfoID returns Complete bound to entryInfoID.
func WithEntryInfoID(entryInfoID id.EntryInfoID) traveler.Data {
	d := Complete()
	d.EntryInfoID = entryInfoID
	return d
}
