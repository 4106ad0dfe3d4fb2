// Package traveler holds the traveler data a submission is built from.
package traveler

import (
	id "entrypass/pkg/domain"
)

type Passport struct {
	PassportNo  string `json:"passportNo"`
	FamilyName  string `json:"familyName"`
	FirstName   string `json:"firstName"`
	MiddleName  string `json:"middleName,omitempty"`
	Nationality string `json:"nationality"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	ExpiryDate  string `json:"expiryDate"`
	PhotoPath   string `json:"photoPath,omitempty"`
}

type PersonalInfo struct {
	Occupation         string `json:"occupation"`
	Email              string `json:"email"`
	PhoneCode          string `json:"phoneCode"`
	PhoneNumber        string `json:"phoneNumber"`
	CountryOfResidence string `json:"countryOfResidence"`
	CityOfResidence    string `json:"cityOfResidence,omitempty"`
}

type Travel struct {
	ArrivalDate           string `json:"arrivalDate"`
	DepartureDate         string `json:"departureDate,omitempty"`
	FlightNo              string `json:"flightNo"`
	TravelMode            string `json:"travelMode"`
	PurposeOfTravel       string `json:"purposeOfTravel"`
	BoardingCountry       string `json:"boardingCountry"`
	AccommodationType     string `json:"accommodationType"`
	AccommodationProvince string `json:"accommodationProvince"`
	AccommodationDistrict string `json:"accommodationDistrict"`
	AccommodationAddress  string `json:"accommodationAddress"`
	AccommodationPostcode string `json:"accommodationPostcode,omitempty"`
}

// FundItem is a proof-of-funds document, optionally with a photo.
type FundItem struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	PhotoPath string  `json:"photoPath,omitempty"`
}

// Data is everything known about one traveler for one entry.
type Data struct {
	EntryInfoID   id.EntryInfoID `json:"entryInfoId"`
	DestinationID string         `json:"destinationId"`
	Passport      Passport       `json:"passport"`
	PersonalInfo  PersonalInfo   `json:"personalInfo"`
	Travel        Travel         `json:"travel"`
	Funds         []FundItem     `json:"funds"`
}

// Fields flattens the data into logical field names as used by destination
// field rules and selector heuristics.
func (d Data) Fields() map[string]string {
	return map[string]string{
		"passportNo":            d.Passport.PassportNo,
		"familyName":            d.Passport.FamilyName,
		"firstName":             d.Passport.FirstName,
		"middleName":            d.Passport.MiddleName,
		"nationality":           d.Passport.Nationality,
		"dateOfBirth":           d.Passport.DateOfBirth,
		"gender":                d.Passport.Gender,
		"passportExpiry":        d.Passport.ExpiryDate,
		"occupation":            d.PersonalInfo.Occupation,
		"email":                 d.PersonalInfo.Email,
		"phoneCode":             d.PersonalInfo.PhoneCode,
		"phoneNumber":           d.PersonalInfo.PhoneNumber,
		"countryOfResidence":    d.PersonalInfo.CountryOfResidence,
		"cityOfResidence":       d.PersonalInfo.CityOfResidence,
		"arrivalDate":           d.Travel.ArrivalDate,
		"departureDate":         d.Travel.DepartureDate,
		"flightNo":              d.Travel.FlightNo,
		"travelMode":            d.Travel.TravelMode,
		"purposeOfTravel":       d.Travel.PurposeOfTravel,
		"boardingCountry":       d.Travel.BoardingCountry,
		"accommodationType":     d.Travel.AccommodationType,
		"accommodationProvince": d.Travel.AccommodationProvince,
		"accommodationDistrict": d.Travel.AccommodationDistrict,
		"accommodationAddress":  d.Travel.AccommodationAddress,
		"accommodationPostcode": d.Travel.AccommodationPostcode,
	}
}
