package models

// Field-mapping origin flags.
const (
	MappingOriginCache = "cache"
	MappingOriginAI    = "ai"
)

// FieldMapping is a memoized field-name-to-data-key decision, stored in the
// cache under the field's signature. Label and FieldName are kept for
// debugging only; UsageCount lives in a companion counter key so reads can
// increment it atomically.
type FieldMapping struct {
	Signature  string `json:"signature"`
	MatchedKey string `json:"matchedKey"`
	Confidence int    `json:"confidence"`
	UsageCount int64  `json:"usageCount"`
	Label      string `json:"label,omitempty"`
	FieldName  string `json:"fieldName,omitempty"`
	Origin     string `json:"origin"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}
