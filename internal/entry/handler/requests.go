package handler

import (
	"strings"

	"entrypass/internal/archive/assets"
	"entrypass/internal/entry/models"
	"entrypass/internal/traveler"
	dErrors "entrypass/pkg/domain-errors"
)

const (
	maxTripIDLength = 128
	maxFunds        = 20
)

// CreateEntryRequest is the body of POST /entries.
type CreateEntryRequest struct {
	DestinationID string `json:"destinationId"`
	TripID        string `json:"tripId"`
}

func (r *CreateEntryRequest) Normalize() {
	r.DestinationID = strings.ToUpper(strings.TrimSpace(r.DestinationID))
	r.TripID = strings.TrimSpace(r.TripID)
}

func (r *CreateEntryRequest) Validate() error {
	switch {
	case r.DestinationID == "":
		return dErrors.New(dErrors.CodeValidation, "destinationId is required")
	case r.TripID == "":
		return dErrors.New(dErrors.CodeValidation, "tripId is required")
	case len(r.TripID) > maxTripIDLength:
		return dErrors.New(dErrors.CodeValidation, "tripId is too long")
	}
	return nil
}

// TravelerRequest is the body of PUT /entries/{id}/traveler. Field rules are
// checked by the validator and reported in the response, not here.
type TravelerRequest struct {
	Passport     traveler.Passport     `json:"passport"`
	PersonalInfo traveler.PersonalInfo `json:"personalInfo"`
	Travel       traveler.Travel       `json:"travel"`
	Funds        []traveler.FundItem   `json:"funds"`
}

func (r *TravelerRequest) Normalize() {
	p := &r.Passport
	p.PassportNo = strings.ToUpper(strings.TrimSpace(p.PassportNo))
	p.FamilyName = strings.TrimSpace(p.FamilyName)
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.MiddleName = strings.TrimSpace(p.MiddleName)
	p.Nationality = strings.ToUpper(strings.TrimSpace(p.Nationality))
	r.PersonalInfo.Email = strings.TrimSpace(r.PersonalInfo.Email)
	r.Travel.FlightNo = strings.ToUpper(strings.ReplaceAll(r.Travel.FlightNo, " ", ""))
}

func (r *TravelerRequest) Validate() error {
	if len(r.Funds) > maxFunds {
		return dErrors.New(dErrors.CodeValidation, "too many fund items")
	}
	seen := make(map[string]struct{}, len(r.Funds))
	for _, f := range r.Funds {
		if f.ID == "" {
			return dErrors.New(dErrors.CodeValidation, "fund id is required")
		}
		if _, dup := seen[f.ID]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate fund id: "+f.ID)
		}
		seen[f.ID] = struct{}{}
		if f.PhotoPath == "" {
			continue
		}
		if err := assets.ValidatePhotoSource(f.PhotoPath); err != nil {
			return dErrors.New(dErrors.CodeValidation, "fund photo path is invalid")
		}
	}
	return nil
}

// Data converts the request; ids are stamped by the orchestrator.
func (r *TravelerRequest) Data() traveler.Data {
	return traveler.Data{
		Passport:     r.Passport,
		PersonalInfo: r.PersonalInfo,
		Travel:       r.Travel,
		Funds:        r.Funds,
	}
}

// SubmitRequest is the body of POST /entries/{id}/submissions. An empty
// method uses the configured default.
type SubmitRequest struct {
	Method string `json:"method,omitempty"`

	parsedMethod models.SubmissionMethod
}

func (r *SubmitRequest) Normalize() {
	r.Method = strings.TrimSpace(r.Method)
}

func (r *SubmitRequest) Validate() error {
	if r.Method == "" {
		return nil
	}
	m, err := models.ParseSubmissionMethod(r.Method)
	if err != nil {
		return err
	}
	r.parsedMethod = m
	return nil
}

func (r *SubmitRequest) ParsedMethod() models.SubmissionMethod {
	return r.parsedMethod
}

// ArchiveRequest is the body of POST /entries/{id}/snapshots.
type ArchiveRequest struct {
	Reason string `json:"reason"`
}

func (r *ArchiveRequest) Normalize() {
	r.Reason = strings.ToLower(strings.TrimSpace(r.Reason))
	if r.Reason == "" {
		r.Reason = "completed"
	}
}

func (r *ArchiveRequest) Validate() error {
	switch r.Reason {
	case "completed", "cancelled", "expired":
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, "reason must be one of completed, cancelled, expired")
}

// PackResponse is the pack with the status shown to the traveler.
type PackResponse struct {
	Pack          *models.EntryPack `json:"pack"`
	DisplayStatus string            `json:"displayStatus"`
	Finalized     bool              `json:"finalized"`
}
