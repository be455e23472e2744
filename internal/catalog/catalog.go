// Package catalog holds the fixed set of detectable traffic violations with
// their legal metadata. The catalog is loaded once at process start and shared
// read-only across all requests.
package catalog

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Entry is one violation definition: stable id, unique name, and the fine and
// Motor Vehicles Act section that apply when it is confirmed.
type Entry struct {
	ID                int      `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	Category          string   `json:"category" yaml:"category"`
	Description       string   `json:"description" yaml:"description"`
	VisibleIndicators []string `json:"visible_indicators" yaml:"visible_indicators"`
	FineAmount        int      `json:"fine_amount" yaml:"fine_amount"` // INR
	Section           string   `json:"section" yaml:"section"`
}

// DocumentText renders the entry as the retrieval corpus text embedded by the
// candidate index. Keeping name, description, category and visible cues in one
// passage is what lets free-text labels land on the right entry.
func (e Entry) DocumentText() string {
	return fmt.Sprintf("%s — %s Category: %s. Typically visible cues: %s. Applies fine ₹%d under Section %s.",
		e.Name, e.Description, e.Category, strings.Join(e.VisibleIndicators, ", "), e.FineAmount, e.Section)
}

// Default returns the built-in violation catalog.
func Default() []Entry {
	return []Entry{
		{
			ID:                1,
			Name:              "Helmet Missing",
			Category:          "Safety Gear",
			Description:       "Rider or pillion on a two-wheeler is not wearing a helmet.",
			VisibleIndicators: []string{"two-wheeler", "human head", "no helmet object"},
			FineAmount:        1000,
			Section:           "194D(1)",
		},
		{
			ID:                2,
			Name:              "Triple Riding",
			Category:          "Occupancy",
			Description:       "More than two people riding on a two-wheeler.",
			VisibleIndicators: []string{"two-wheeler", "three persons detected"},
			FineAmount:        2000,
			Section:           "128(1)/177",
		},
		{
			ID:                3,
			Name:              "Seatbelt Not Worn",
			Category:          "Safety Gear",
			Description:       "Driver or front passenger not wearing a seatbelt in a four-wheeler.",
			VisibleIndicators: []string{"car front seat", "person detected", "no seatbelt strap visible"},
			FineAmount:        1000,
			Section:           "194B(1)",
		},
		{
			ID:                4,
			Name:              "Red Light Violation",
			Category:          "Signal Violation",
			Description:       "Vehicle is stopped or moving beyond the stop line while traffic signal is red.",
			VisibleIndicators: []string{"traffic signal showing red", "vehicle beyond stop line"},
			FineAmount:        5000,
			Section:           "184",
		},
		{
			ID:                5,
			Name:              "Wrong Side Driving (Lane Violation)",
			Category:          "Road Rule",
			Description:       "Vehicle seen facing or driving in the wrong direction on a one-way road.",
			VisibleIndicators: []string{"vehicle direction opposite lane marking or signage"},
			FineAmount:        5000,
			Section:           "184",
		},
		{
			ID:                6,
			Name:              "No Number Plate",
			Category:          "Identity Violation",
			Description:       "Vehicle has missing, obscured, or tampered number plate.",
			VisibleIndicators: []string{"vehicle detected", "license plate region empty or unclear"},
			FineAmount:        3000,
			Section:           "50/51/177",
		},
		{
			ID:                7,
			Name:              "Illegal Parking",
			Category:          "Parking",
			Description:       "Vehicle parked in a no-parking zone, on footpath, or obstructing road/pedestrian path.",
			VisibleIndicators: []string{"stationary vehicle", "road markings", "no parking signage or footpath"},
			FineAmount:        500,
			Section:           "122/177",
		},
		{
			ID:                8,
			Name:              "Vehicle Overloading",
			Category:          "Load Violation",
			Description:       "Vehicle visibly carrying excessive goods or passengers beyond permitted capacity.",
			VisibleIndicators: []string{"goods stacked high", "too many passengers visible"},
			FineAmount:        20000,
			Section:           "194(1)",
		},
		{
			ID:                9,
			Name:              "Obstructive Parking",
			Category:          "Parking",
			Description:       "Vehicle parked in a way that blocks other vehicles, driveways, or crosswalks.",
			VisibleIndicators: []string{"vehicle blocking another vehicle or gate"},
			FineAmount:        500,
			Section:           "122/177",
		},
		{
			ID:                10,
			Name:              "Tampered Number Plate",
			Category:          "Identity Violation",
			Description:       "Number plate covered, painted, or altered to hide registration details.",
			VisibleIndicators: []string{"plate present but illegible or blurred intentionally"},
			FineAmount:        3000,
			Section:           "50/51/177",
		},
		{
			ID:                11,
			Name:              "Improper Lane Discipline",
			Category:          "Road Rule",
			Description:       "Vehicle straddling lane markings or encroaching into other lanes improperly.",
			VisibleIndicators: []string{"vehicle crossing lane boundary without indication"},
			FineAmount:        2000,
			Section:           "184",
		},
		{
			ID:                12,
			Name:              "Driving Without Rearview Mirrors",
			Category:          "Safety Gear",
			Description:       "Two-wheeler missing one or both rearview mirrors.",
			VisibleIndicators: []string{"handlebar detected", "mirrors missing on both sides"},
			FineAmount:        1000,
			Section:           "177",
		},
		{
			ID:                13,
			Name:              "Unauthorized Modifications",
			Category:          "Vehicle Condition",
			Description:       "Vehicle modified in violation of standard design, e.g., tinted windows, loud exhaust, or altered lights.",
			VisibleIndicators: []string{"dark window tint", "unusual exhaust or lights"},
			FineAmount:        5000,
			Section:           "190(2)",
		},
	}
}

// Names returns the catalog entry names in id order, used to constrain the
// vision classifier to the allowed label vocabulary.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Validate checks that ids and names are unique and required fields are set.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return eris.New("catalog: no entries")
	}
	ids := make(map[int]bool, len(entries))
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return eris.Errorf("catalog: entry %d has no name", e.ID)
		}
		if e.Section == "" {
			return eris.Errorf("catalog: entry %q has no legal section", e.Name)
		}
		if ids[e.ID] {
			return eris.Errorf("catalog: duplicate id %d", e.ID)
		}
		if names[e.Name] {
			return eris.Errorf("catalog: duplicate name %q", e.Name)
		}
		ids[e.ID] = true
		names[e.Name] = true
	}
	return nil
}
