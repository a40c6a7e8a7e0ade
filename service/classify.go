package service

import (
	"sort"
	"strconv"
	"strings"
)

// SourceKind tags the classified origin of a webhook payload
type SourceKind int

const (
	SourceKindCRM SourceKind = iota
	SourceKindSpreadsheet
)

func (k SourceKind) String() string {
	if k == SourceKindSpreadsheet {
		return "spreadsheet"
	}
	return "crm"
}

// Key conventions the classifier and id derivation look for. Automation
// tools are inconsistent about casing and separators, so the lists carry
// every variant seen in the wild.
var (
	rowNumberKeys = map[string]bool{
		"rownumber": true, "row_number": true, "row": true,
		"rowid": true, "row_id": true, "rownum": true,
	}

	sheetIndicatorKeys = map[string]bool{
		"spreadsheetid": true, "spreadsheet_id": true, "sheetid": true,
		"sheet_id": true, "googlesheets": true, "sheetname": true,
		"spreadsheet": true, "worksheet": true,
	}

	sheetSourceTags = map[string]bool{
		"google-sheets": true, "googlesheets": true, "sheets": true,
	}

	// Ordered: an explicit spreadsheet id beats a sheet/tab id.
	spreadsheetIDKeys = []string{
		"spreadsheetId", "spreadsheet_id", "sheetId", "sheet_id",
		"spreadsheet", "worksheet",
	}

	// Metadata stripped from payloads before the remainder is persisted as
	// field data: identifiers, emails, and routing hints are not form data.
	metadataKeys = map[string]bool{
		"userId": true, "employeeId": true, "id": true, "email": true,
		"spreadsheetId": true, "sheetId": true, "rowNumber": true,
		"row": true, "row_id": true,
	}

	// Email key fallback chains, tried in order, compared case-insensitively.
	bodyEmailKeys   = []string{"email", "useremail", "googleuseremail", "zapieruseremail", "sheetuseremail"}
	headerEmailKeys = []string{"X-Zapier-User-Email", "X-User-Email", "X-Google-User-Email"}
	googleEmailKeys = []string{"googleaccountemail", "googleemail", "accountemail", "sheetsuseremail"}

	zapIDHeaders     = []string{"X-Zapier-Zap-Id", "X-Zap-Id", "X-Zapier-Webhook-Id"}
	rowNumberPayload = []string{"rowNumber", "row_number", "row", "row_id"}
)

// DetectSource classifies a webhook payload as spreadsheet-style or
// CRM-style. This is a pure function over the payload: any one signal
// triggers spreadsheet classification, and the signals are checked as an
// order-independent OR. A payload with no per-record identifier also
// defaults to spreadsheet-style, since CRM records always carry one.
func DetectSource(payload map[string]interface{}) SourceKind {
	hasColumnPattern := false
	hasRowNumber := false
	hasSheetIndicator := false

	for key := range payload {
		lower := strings.ToLower(key)
		if rowNumberKeys[lower] {
			hasRowNumber = true
		}
		if sheetIndicatorKeys[lower] {
			hasSheetIndicator = true
		}
		// Zapier names Google Sheets columns "1. Column Name" or "col_a".
		if strings.HasPrefix(key, "1.") || strings.HasPrefix(key, "2.") ||
			strings.HasPrefix(key, "3.") || strings.HasPrefix(key, "col_") {
			hasColumnPattern = true
		}
	}

	sourceTag := strings.ToLower(stringValue(payload, "source"))
	hasSourceTag := sheetSourceTags[sourceTag]

	if hasRowNumber || hasSheetIndicator || hasSourceTag || hasColumnPattern {
		return SourceKindSpreadsheet
	}

	if stringValue(payload, "employeeId") == "" && stringValue(payload, "id") == "" {
		return SourceKindSpreadsheet
	}

	return SourceKindCRM
}

// DeriveProfileID produces the stable profile identifier for a delivery.
// The priority chain exists so that repeated deliveries from the same
// upstream source land on one record: same sheet first, else same
// automation run, else same user. CRM deliveries always coalesce into a
// single per-user profile regardless of any record id in the payload.
func DeriveProfileID(kind SourceKind, payload map[string]interface{}, zapID, userID string) string {
	if kind == SourceKindCRM {
		return "crm_" + userID
	}
	if sheetID := spreadsheetID(payload); sheetID != "" {
		return "googlesheets_" + sheetID
	}
	if zapID != "" {
		return "googlesheets_zap_" + zapID
	}
	return "googlesheets_" + userID
}

// DeriveSourceID produces the source-grouping identifier stored alongside
// the profile, used for the secondary lookup when the profile id misses
func DeriveSourceID(kind SourceKind, payload map[string]interface{}, zapID, userID string) string {
	if kind == SourceKindCRM {
		return "crm_" + userID
	}
	for _, key := range []string{"spreadsheetId", "spreadsheet_id", "sheetId"} {
		if v := stringValue(payload, key); v != "" {
			return v
		}
	}
	if zapID != "" {
		return zapID
	}
	return "sheet_" + userID
}

// ProfileLabel synthesizes the human-readable label for an ingested
// profile. Spreadsheet labels carry a name extracted from the payload; CRM
// profiles always get the fixed label since all CRM data coalesces into
// one record per user.
func ProfileLabel(kind SourceKind, payload map[string]interface{}) string {
	if kind == SourceKindCRM {
		return "CRM: CRM Data"
	}
	return "Google Sheets: " + ExtractName(payload, "Google Sheets Data")
}

// ExtractName falls back through explicit name, first+last concatenation,
// then the supplied default
func ExtractName(payload map[string]interface{}, fallback string) string {
	if name := stringValue(payload, "name"); name != "" {
		return name
	}
	first := stringValue(payload, "firstName")
	last := stringValue(payload, "lastName")
	if full := strings.TrimSpace(first + " " + last); full != "" {
		return full
	}
	return fallback
}

// StripMetadata removes the enumerated metadata keys and any empty/falsy
// values, leaving only the fields worth persisting
func StripMetadata(payload map[string]interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		if metadataKeys[key] || isFalsy(value) {
			continue
		}
		fields[key] = value
	}
	return fields
}

// RowNumber picks an explicit row number out of the payload, else the next
// position in the row list
func RowNumber(payload map[string]interface{}, rowCount int) string {
	for _, key := range rowNumberPayload {
		if v := stringValue(payload, key); v != "" {
			return v
		}
	}
	return strconv.Itoa(rowCount + 1)
}

// FindEmail walks an ordered list of candidate key names over the payload,
// comparing key names case-insensitively, and returns the first non-empty
// value normalized to lower-case. Within one candidate the exact-case key
// wins; remaining case-variants are tried in sorted order so resolution
// never depends on map iteration.
func FindEmail(payload map[string]interface{}, candidates []string) string {
	for _, candidate := range candidates {
		if email := normalizeEmail(stringify(payload[candidate])); email != "" {
			return email
		}
		var variants []string
		for key := range payload {
			if key != candidate && strings.ToLower(key) == candidate {
				variants = append(variants, key)
			}
		}
		sort.Strings(variants)
		for _, key := range variants {
			if email := normalizeEmail(stringify(payload[key])); email != "" {
				return email
			}
		}
	}
	return ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func spreadsheetID(payload map[string]interface{}) string {
	for _, key := range spreadsheetIDKeys {
		if v := stringValue(payload, key); v != "" {
			return v
		}
	}
	return ""
}

// stringValue returns the payload value under the exact key, stringified,
// or "" when absent or falsy
func stringValue(payload map[string]interface{}, key string) string {
	v, ok := payload[key]
	if !ok || isFalsy(v) {
		return ""
	}
	return stringify(v)
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// isFalsy mirrors the loose truthiness webhook payloads are filtered with:
// nil, empty string, false and numeric zero all count as absent
func isFalsy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	default:
		return false
	}
}
