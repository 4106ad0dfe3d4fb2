package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/destination"
	"entrypass/internal/entry/models"
	"entrypass/internal/traveler"
	"entrypass/internal/traveler/travelertest"
	"entrypass/pkg/platform/clock"
)

func thailand(t *testing.T) destination.Config {
	t.Helper()
	cfg, err := destination.Default().Get("TH")
	require.NoError(t, err)
	return cfg
}

func newValidator() *Validator {
	return New(WithClock(clock.Fake(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))))
}

func TestValidate_CompleteData(t *testing.T) {
	res := newValidator().Validate(travelertest.Complete(), thailand(t))
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidate_MissingPassportNo(t *testing.T) {
	data := travelertest.Complete()
	data.Passport.PassportNo = ""

	res := newValidator().Validate(data, thailand(t))
	assert.False(t, res.IsValid)
	require.Contains(t, res.Errors, "passportNo")
	assert.Equal(t, []string{"is required"}, res.Errors["passportNo"])
	assert.Equal(t, []string{"passportNo"}, res.FieldNames())
}

func TestValidate_FormatErrors(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		mutate func(d *traveler.Data)
	}{
		{"bad date", "arrivalDate", func(d *traveler.Data) { d.Travel.ArrivalDate = "10/04/2026" }},
		{"bad email", "email", func(d *traveler.Data) { d.PersonalInfo.Email = "jane-at-example" }},
		{"bad country", "nationality", func(d *traveler.Data) { d.Passport.Nationality = "UK" }},
		{"pattern mismatch", "gender", func(d *traveler.Data) { d.Passport.Gender = "F" }},
		{"too long", "accommodationAddress", func(d *traveler.Data) {
			d.Travel.AccommodationAddress = strings.Repeat("a", 216)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := travelertest.Complete()
			tt.mutate(&data)
			res := newValidator().Validate(data, thailand(t))
			assert.False(t, res.IsValid)
			assert.Contains(t, res.Errors, tt.field)
		})
	}
}

func TestValidate_OptionalFieldsMayBeBlank(t *testing.T) {
	data := travelertest.Complete()
	data.PersonalInfo.Email = ""
	data.Travel.AccommodationPostcode = ""

	res := newValidator().Validate(data, thailand(t))
	assert.True(t, res.IsValid)
}

func TestValidate_RequiredFunds(t *testing.T) {
	cfg := thailand(t)
	cfg.RequireFunds = true
	data := travelertest.Complete()
	data.Funds = nil

	res := newValidator().Validate(data, cfg)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "funds")
}

func TestValidate_Warnings(t *testing.T) {
	data := travelertest.Complete()
	data.Travel.ArrivalDate = "2026-03-20"
	data.Travel.DepartureDate = "2026-03-10"
	data.Passport.ExpiryDate = "2026-06-01"

	res := newValidator().Validate(data, thailand(t))
	assert.True(t, res.IsValid, "warnings never block")
	assert.ElementsMatch(t, []string{
		"arrival date is in the past",
		"passport expires within 6 months of arrival",
		"departure date is before arrival date",
	}, res.Warnings)
}

func TestCompletion(t *testing.T) {
	cfg := thailand(t)

	t.Run("complete data is complete in every category", func(t *testing.T) {
		metrics := Completion(travelertest.Complete(), cfg)
		assert.True(t, metrics.AllComplete())
		assert.NotContains(t, metrics, string(destination.CategoryFunds))
	})

	t.Run("missing travel fields make travel partial", func(t *testing.T) {
		data := travelertest.Complete()
		data.Travel.FlightNo = ""
		data.Travel.ArrivalDate = "not-a-date"

		metrics := Completion(data, cfg)
		travel := metrics[string(destination.CategoryTravel)]
		assert.Equal(t, models.CompletionPartial, travel.State)
		assert.Equal(t, travel.Total-2, travel.Complete)
		assert.False(t, metrics.AllComplete())
	})

	t.Run("empty personal info is missing", func(t *testing.T) {
		data := travelertest.Complete()
		data.PersonalInfo = traveler.PersonalInfo{}
		metrics := Completion(data, cfg)
		assert.Equal(t, models.CompletionMissing, metrics[string(destination.CategoryPersonalInfo)].State)
	})
}
