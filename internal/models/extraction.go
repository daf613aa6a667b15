// ABOUTME: ExtractionItem is one entry of an extraction document (extraction/<project>.json)
// ABOUTME: Items are heterogeneous: strategy/goal tuples, descriptions, archseek maps, metadata, raw text
package models

import "encoding/json"

// ExtractionItem is a single entry in a project's extraction document.
// Exactly one of the content fields is expected to be set; AssetName ties the
// item to the image or text file it was extracted from.
type ExtractionItem struct {
	AssetName string `json:"asset_name,omitempty"`

	Strategy string `json:"strategy,omitempty"`
	Goal     string `json:"goal,omitempty"`
	Round    int    `json:"round,omitempty"`

	ImageDescription          string `json:"image_description,omitempty"`
	AugmentedImageDescription string `json:"augmented_image_description,omitempty"`

	Archseek map[string][]string `json:"archseek,omitempty"`

	Metadata *ProjectMetadata `json:"metadata,omitempty"`

	RawText string `json:"raw_text,omitempty"`
	Source  string `json:"source,omitempty"`
}

// IsEmpty reports whether the item carries no recognized content
func (it ExtractionItem) IsEmpty() bool {
	return it.Strategy == "" && it.Goal == "" && it.ImageDescription == "" &&
		it.AugmentedImageDescription == "" && len(it.Archseek) == 0 &&
		it.Metadata == nil && it.RawText == ""
}

// ProjectMetadata holds the structured facts extracted from a project's text
type ProjectMetadata struct {
	Designer []string `json:"designer,omitempty"`
	Year     int      `json:"year,omitempty"`
	Country  string   `json:"country,omitempty"`
	City     string   `json:"city,omitempty"`
	Function []string `json:"function,omitempty"`
	Style    []string `json:"style,omitempty"`
	Material []string `json:"material,omitempty"`
	Area     int      `json:"area,omitempty"`
}

// UnmarshalJSON tolerates models returning year/area as strings or floats
func (m *ProjectMetadata) UnmarshalJSON(data []byte) error {
	type alias struct {
		Designer []string    `json:"designer"`
		Year     json.Number `json:"year"`
		Country  string      `json:"country"`
		City     string      `json:"city"`
		Function []string    `json:"function"`
		Style    []string    `json:"style"`
		Material []string    `json:"material"`
		Area     json.Number `json:"area"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.Designer = a.Designer
	m.Country = a.Country
	m.City = a.City
	m.Function = a.Function
	m.Style = a.Style
	m.Material = a.Material
	if y, err := a.Year.Int64(); err == nil {
		m.Year = int(y)
	} else if f, err := a.Year.Float64(); err == nil {
		m.Year = int(f)
	}
	if s, err := a.Area.Int64(); err == nil {
		m.Area = int(s)
	} else if f, err := a.Area.Float64(); err == nil {
		m.Area = int(f)
	}
	return nil
}
