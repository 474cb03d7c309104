package leads

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	zipCodePattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	phonePattern   = regexp.MustCompile(`^\+?[0-9\s\-()]*$`)
)

const (
	minNameLength   = 2
	minPhoneDigits  = 10
	movingDateParse = "2006-01-02"
)

// SubmitRequest is the public form payload.
type SubmitRequest struct {
	Name                      string           `json:"name"`
	Email                     string           `json:"email"`
	Phone                     string           `json:"phone"`
	CurrentAddress            Address          `json:"currentAddress"`
	DestinationAddress        Address          `json:"destinationAddress"`
	MovingDate                string           `json:"movingDate"`
	MovingPreference          MovingPreference `json:"movingPreference"`
	NumberOfRooms             string           `json:"numberOfRooms"`
	ApproximateBoxesCount     string           `json:"approximateBoxesCount"`
	ApproximateFurnitureCount string           `json:"approximateFurnitureCount"`
	SpecialInstructions       string           `json:"specialInstructions"`
	AdditionalNotes           string           `json:"additionalNotes"`
	Category                  Category         `json:"category"`
	AgreedToTerms             bool             `json:"agreedToTerms"`
}

// ValidatedSubmission is a request that passed validation, with the moving date parsed.
type ValidatedSubmission struct {
	SubmitRequest
	MovingDay time.Time
}

// Validate checks the request against the lead schema. today must already be in the
// business time zone; moving dates before it are rejected.
func (r *SubmitRequest) Validate(today time.Time) (*ValidatedSubmission, error) {
	r.normalize()
	verr := &ValidationError{}

	if len([]rune(r.Name)) < minNameLength {
		verr.add("name", "Name must be at least 2 characters.")
	}
	if !validEmail(r.Email) {
		verr.add("email", "Invalid email address.")
	}
	if !validPhone(r.Phone) {
		verr.add("phone", "Invalid phone number format.")
	}
	validateAddress(verr, "currentAddress", r.CurrentAddress)
	validateAddress(verr, "destinationAddress", r.DestinationAddress)

	movingDay, ok := ParseMovingDate(r.MovingDate, today.Location())
	switch {
	case !ok:
		verr.add("movingDate", "Moving date is required.")
	case DaysUntil(movingDay, today) < 0:
		verr.add("movingDate", "Moving date cannot be in the past.")
	}

	switch r.MovingPreference {
	case MovingLocal, MovingLongDistance:
	default:
		verr.add("movingPreference", "Please select a moving preference.")
	}

	if rooms, err := strconv.Atoi(r.NumberOfRooms); err != nil || rooms < 1 {
		verr.add("numberOfRooms", "Number of rooms must be a positive whole number.")
	}
	validateQuantity(verr, "approximateBoxesCount", r.ApproximateBoxesCount)
	validateQuantity(verr, "approximateFurnitureCount", r.ApproximateFurnitureCount)

	switch r.Category {
	case CategoryResidential, CategoryCommercial:
	default:
		verr.add("category", "Category must be Residential or Commercial.")
	}

	if !r.AgreedToTerms {
		verr.add("agreedToTerms", "You must agree to the data usage disclosure to submit.")
	}

	if !verr.empty() {
		return nil, verr
	}
	return &ValidatedSubmission{SubmitRequest: *r, MovingDay: movingDay}, nil
}

func (r *SubmitRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.MovingDate = strings.TrimSpace(r.MovingDate)
	r.NumberOfRooms = strings.TrimSpace(r.NumberOfRooms)
	r.ApproximateBoxesCount = strings.TrimSpace(r.ApproximateBoxesCount)
	r.ApproximateFurnitureCount = strings.TrimSpace(r.ApproximateFurnitureCount)
	r.SpecialInstructions = strings.TrimSpace(r.SpecialInstructions)
	r.AdditionalNotes = strings.TrimSpace(r.AdditionalNotes)
	for _, a := range []*Address{&r.CurrentAddress, &r.DestinationAddress} {
		a.Street = strings.TrimSpace(a.Street)
		a.City = strings.TrimSpace(a.City)
		a.State = strings.TrimSpace(a.State)
		a.ZipCode = strings.TrimSpace(a.ZipCode)
	}
}

// ParseMovingDate accepts a plain calendar date or an RFC 3339 timestamp. A
// timestamp is converted to loc before its date is taken. The result is the
// calendar date at midnight UTC.
func ParseMovingDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if d, err := time.Parse(movingDateParse, raw); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return civilDate(ts.In(loc)), true
	}
	return time.Time{}, false
}

// ToLead builds the initial record. ID and CreatedAt are assigned by the repository.
func (s *ValidatedSubmission) ToLead(est Estimate, urgency Urgency, consentAt time.Time) *Lead {
	return &Lead{
		Name:                      s.Name,
		Email:                     s.Email,
		Phone:                     s.Phone,
		CurrentAddress:            s.CurrentAddress,
		DestinationAddress:        s.DestinationAddress,
		MovingDate:                s.MovingDay,
		MovingPreference:          s.MovingPreference,
		NumberOfRooms:             s.NumberOfRooms,
		ApproximateBoxesCount:     s.ApproximateBoxesCount,
		ApproximateFurnitureCount: s.ApproximateFurnitureCount,
		SpecialInstructions:       s.SpecialInstructions,
		AdditionalNotes:           s.AdditionalNotes,
		Category:                  s.Category,
		MinEstimate:               est.MinEstimate,
		MaxEstimate:               est.MaxEstimate,
		Urgency:                   urgency,
		ConsentAcceptedAt:         consentAt.UTC(),
	}
}

// EstimateInput returns the counts used for pricing.
func (s *ValidatedSubmission) EstimateInput() EstimateInput {
	return EstimateInput{
		NumberOfRooms:             s.NumberOfRooms,
		ApproximateBoxesCount:     s.ApproximateBoxesCount,
		ApproximateFurnitureCount: s.ApproximateFurnitureCount,
	}
}

func validateAddress(verr *ValidationError, prefix string, a Address) {
	if a.Street == "" {
		verr.add(prefix+".street", "Street is required.")
	}
	if a.City == "" {
		verr.add(prefix+".city", "City is required.")
	}
	if a.State == "" {
		verr.add(prefix+".state", "State is required.")
	}
	if !zipCodePattern.MatchString(a.ZipCode) {
		verr.add(prefix+".zipCode", "Zip code must be 5 digits or ZIP+4.")
	}
}

func validateQuantity(verr *ValidationError, field, value string) {
	if value == "" {
		verr.add(field, "This field is required.")
		return
	}
	if n, err := strconv.Atoi(value); err == nil && n < 0 {
		verr.add(field, "Quantity cannot be negative.")
	}
}

func validEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}

func validPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minPhoneDigits
}
