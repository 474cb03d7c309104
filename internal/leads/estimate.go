package leads

import (
	"strconv"
	"strings"
)

// Pricing constants for the approximate estimate.
const (
	baseCost         = 500
	costPerRoom      = 200
	costPerBox       = 5
	costPerFurniture = 20
	rangeOffset      = 400

	// maxQuantity caps parsed counts so the arithmetic cannot overflow.
	maxQuantity = 1_000_000
)

// EstimateInput carries the free-form counts from the form.
type EstimateInput struct {
	NumberOfRooms             string `json:"numberOfRooms"`
	ApproximateBoxesCount     string `json:"approximateBoxesCount"`
	ApproximateFurnitureCount string `json:"approximateFurnitureCount"`
}

// Estimate is an approximate price range in whole dollars.
type Estimate struct {
	MinEstimate int `json:"minEstimate"`
	MaxEstimate int `json:"maxEstimate"`
}

// CalculateEstimate applies the linear pricing model. Rooms default to 1 and
// boxes/furniture to 0 when the input has no leading integer. A room count of
// zero is also priced as one room.
func CalculateEstimate(in EstimateInput) Estimate {
	rooms := parseQuantity(in.NumberOfRooms, 1)
	if rooms == 0 {
		rooms = 1
	}
	boxes := parseQuantity(in.ApproximateBoxesCount, 0)
	furniture := parseQuantity(in.ApproximateFurnitureCount, 0)

	base := baseCost + rooms*costPerRoom + boxes*costPerBox + furniture*costPerFurniture
	return Estimate{
		MinEstimate: max(0, base-rangeOffset),
		MaxEstimate: base + rangeOffset,
	}
}

// parseQuantity reads the leading integer of s ("20 boxes" -> 20), like a
// lenient form parser would.
func parseQuantity(s string, fallback int) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return fallback
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Only out-of-range values reach here.
		if strings.HasPrefix(s, "-") {
			return -maxQuantity
		}
		return maxQuantity
	}
	if n > maxQuantity {
		return maxQuantity
	}
	if n < -maxQuantity {
		return -maxQuantity
	}
	return n
}
