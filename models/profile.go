package models

import "encoding/json"

// Profile source tags.
const (
	SourceUser         = "user"
	SourceCRM          = "crm"
	SourceZapier       = "zapier"
	SourceGoogleSheets = "google-sheets"
)

// Profile is a named bundle of form-fillable field data owned by one user.
// Fields holds a string-encoded JSON object. For webhook-fed profiles the
// object is a row container: {"rows": [{"col_a": "...", "row": "1"}, ...]},
// so successive deliveries accumulate instead of overwriting each other.
type Profile struct {
	ProfileID   string `json:"profileId" dynamodbav:"profileId"`
	UserID      string `json:"userId" dynamodbav:"userId"`
	Label       string `json:"label" dynamodbav:"label"`
	Fields      string `json:"fields" dynamodbav:"fields"`
	Source      string `json:"source" dynamodbav:"source"`
	SourceID    string `json:"sourceId,omitempty" dynamodbav:"sourceId,omitempty"`
	ProfileType string `json:"profileType,omitempty" dynamodbav:"profileType,omitempty"`
	IsDefault   bool   `json:"isDefault" dynamodbav:"isDefault"`
	CreatedAt   int64  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt" dynamodbav:"updatedAt"`
}

// FieldData decodes the stored field payload. A payload that fails to parse
// is treated as empty rather than surfaced as an error, matching the
// tolerant read path the extension expects.
func (p *Profile) FieldData() map[string]interface{} {
	if p.Fields == "" {
		return map[string]interface{}{}
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(p.Fields), &data); err != nil {
		return map[string]interface{}{}
	}
	return data
}

// Rows extracts the accumulated row list from the field payload. Profiles
// written before row-based storage hold a flat field object; that shape is
// migrated by treating the flat fields as the first row.
func (p *Profile) Rows() []map[string]interface{} {
	data := p.FieldData()

	if raw, ok := data["rows"].([]interface{}); ok {
		rows := make([]map[string]interface{}, 0, len(raw))
		for _, r := range raw {
			if row, ok := r.(map[string]interface{}); ok {
				rows = append(rows, row)
			}
		}
		return rows
	}

	// Legacy flat payload: promote to a single row.
	if len(data) > 0 {
		row := make(map[string]interface{}, len(data))
		for k, v := range data {
			if k != "rows" {
				row[k] = v
			}
		}
		if len(row) > 0 {
			return []map[string]interface{}{row}
		}
	}

	return nil
}
