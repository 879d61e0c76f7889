package property

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Validator applies the row admission rules in order; the first failing
// rule wins. A (0, 0) coordinate pair is suspect but deliberately passed
// through: the provider is the single source of truth for unusable
// locations and will fail the fetch.
type Validator struct {
	log *zap.Logger
}

func NewValidator(log *zap.Logger) *Validator {
	return &Validator{log: log.Named("property.validator")}
}

// ValidateAll validates every row and partitions the batch into accepted
// properties and rejections. Duplicate identifiers reject the second and
// later occurrences, never the first.
func (v *Validator) ValidateAll(rows []RawRow) ([]Property, []Rejection) {
	properties := make([]Property, 0, len(rows))
	var rejections []Rejection
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows {
		prop, reason := v.validateRow(row)
		if reason == "" {
			if _, dup := seen[prop.ID]; dup {
				reason = fmt.Sprintf("validation: duplicate identifier %q", prop.ID)
			}
		}
		if reason != "" {
			v.log.Warn("property rejected",
				zap.String("property_id", row.ID),
				zap.Int("position", row.Position),
				zap.String("reason", reason),
			)
			rejections = append(rejections, Rejection{
				ID:       row.ID,
				Position: row.Position,
				Reason:   reason,
			})
			continue
		}
		seen[prop.ID] = struct{}{}
		properties = append(properties, prop)
	}
	return properties, rejections
}

func (v *Validator) validateRow(row RawRow) (Property, string) {
	lat, err := strconv.ParseFloat(row.Latitude, 64)
	if err != nil {
		return Property{}, fmt.Sprintf("validation: latitude %q is not a number", row.Latitude)
	}
	lon, err := strconv.ParseFloat(row.Longitude, 64)
	if err != nil {
		return Property{}, fmt.Sprintf("validation: longitude %q is not a number", row.Longitude)
	}
	if lat < -90 || lat > 90 {
		return Property{}, fmt.Sprintf("validation: latitude %.6f out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return Property{}, fmt.Sprintf("validation: longitude %.6f out of range [-180, 180]", lon)
	}

	extent, err := strconv.ParseFloat(row.Extent, 64)
	if err != nil {
		return Property{}, fmt.Sprintf("validation: extent %q is not a number", row.Extent)
	}
	if extent <= 0 {
		return Property{}, fmt.Sprintf("validation: extent %.4f must be positive", extent)
	}

	id := strings.TrimSpace(row.ID)
	if id == "" {
		return Property{}, "validation: identifier is required"
	}

	return Property{
		ID:          id,
		Latitude:    lat,
		Longitude:   lon,
		ExtentAcres: extent,
		Label:       row.Label,
		Position:    row.Position,
	}, ""
}
