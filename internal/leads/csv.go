package leads

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

const csvDateLayout = "1/2/2006"

// CSVHeader lists the export columns in order.
var CSVHeader = []string{
	"Name",
	"Email",
	"Phone",
	"Current Street",
	"Current City",
	"Current State",
	"Current ZipCode",
	"Destination Street",
	"Destination City",
	"Destination State",
	"Destination ZipCode",
	"Move Date",
	"Number of Rooms",
	"Approximate Boxes Count",
	"Approximate Furniture Count",
	"Special Instructions",
	"Move Type",
	"Category",
	"Urgency",
	"Created At",
}

// WriteCSV writes the header and one row per lead. today supplies the business
// time zone and is used to classify leads stored without an urgency.
func WriteCSV(w io.Writer, leads []*Lead, today time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("leads: write csv header: %w", err)
	}
	for _, lead := range leads {
		if err := cw.Write(csvRow(lead, today)); err != nil {
			return fmt.Errorf("leads: write csv row %s: %w", lead.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("leads: flush csv: %w", err)
	}
	return nil
}

// ExportFilename names the download for the given day.
func ExportFilename(today time.Time) string {
	return "leads-export-" + today.Format("2006-01-02") + ".csv"
}

func csvRow(lead *Lead, today time.Time) []string {
	urgency := lead.Urgency
	if urgency == "" {
		urgency = ClassifyTimeline(lead.MovingDate, today)
	}
	category := lead.Category
	if category == "" {
		category = CategoryResidential
	}
	return []string{
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.CurrentAddress.Street,
		lead.CurrentAddress.City,
		lead.CurrentAddress.State,
		lead.CurrentAddress.ZipCode,
		lead.DestinationAddress.Street,
		lead.DestinationAddress.City,
		lead.DestinationAddress.State,
		lead.DestinationAddress.ZipCode,
		lead.MovingDate.Format(csvDateLayout),
		lead.NumberOfRooms,
		orNA(lead.ApproximateBoxesCount),
		orNA(lead.ApproximateFurnitureCount),
		lead.SpecialInstructions,
		string(lead.MovingPreference),
		string(category),
		string(urgency),
		lead.CreatedAt.In(today.Location()).Format(csvDateLayout),
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
