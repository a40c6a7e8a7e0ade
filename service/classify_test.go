package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSource(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		want    SourceKind
	}{
		{
			name:    "row number key",
			payload: map[string]interface{}{"rowNumber": "5", "name": "Jane", "id": "e1"},
			want:    SourceKindSpreadsheet,
		},
		{
			name:    "spreadsheet id key",
			payload: map[string]interface{}{"spreadsheet_id": "abc123", "name": "Jane", "id": "e1"},
			want:    SourceKindSpreadsheet,
		},
		{
			name:    "source tag",
			payload: map[string]interface{}{"source": "google-sheets", "name": "Jane", "id": "e1"},
			want:    SourceKindSpreadsheet,
		},
		{
			name:    "zapier column naming",
			payload: map[string]interface{}{"1. Full Name": "Jane", "2. Email": "j@x.com", "id": "e1"},
			want:    SourceKindSpreadsheet,
		},
		{
			name:    "no record identifier defaults to spreadsheet",
			payload: map[string]interface{}{"name": "Jane", "phone": "555"},
			want:    SourceKindSpreadsheet,
		},
		{
			name:    "crm record with employee id",
			payload: map[string]interface{}{"employeeId": "e42", "name": "Jane", "title": "Engineer"},
			want:    SourceKindCRM,
		},
		{
			name:    "crm record with plain id",
			payload: map[string]interface{}{"id": "42", "name": "Jane"},
			want:    SourceKindCRM,
		},
		{
			name:    "sheet signal beats employee id",
			payload: map[string]interface{}{"employeeId": "e42", "sheetId": "s1"},
			want:    SourceKindSpreadsheet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSource(tt.payload))
		})
	}
}

func TestDeriveProfileID(t *testing.T) {
	t.Run("spreadsheet id wins", func(t *testing.T) {
		payload := map[string]interface{}{"spreadsheetId": "sheet-1"}
		got := DeriveProfileID(SourceKindSpreadsheet, payload, "zap-9", "u1")
		assert.Equal(t, "googlesheets_sheet-1", got)
	})

	t.Run("zap id when no sheet id", func(t *testing.T) {
		got := DeriveProfileID(SourceKindSpreadsheet, map[string]interface{}{}, "zap-9", "u1")
		assert.Equal(t, "googlesheets_zap_zap-9", got)
	})

	t.Run("per-user fallback", func(t *testing.T) {
		got := DeriveProfileID(SourceKindSpreadsheet, map[string]interface{}{}, "", "u1")
		assert.Equal(t, "googlesheets_u1", got)
	})

	t.Run("crm ignores payload ids", func(t *testing.T) {
		payload := map[string]interface{}{"employeeId": "e42", "spreadsheetId": "sheet-1"}
		got := DeriveProfileID(SourceKindCRM, payload, "zap-9", "u1")
		assert.Equal(t, "crm_u1", got)
	})
}

func TestProfileLabel(t *testing.T) {
	assert.Equal(t, "CRM: CRM Data", ProfileLabel(SourceKindCRM, map[string]interface{}{"name": "Jane"}))

	payload := map[string]interface{}{"name": "Q3 Hires"}
	assert.Equal(t, "Google Sheets: Q3 Hires", ProfileLabel(SourceKindSpreadsheet, payload))

	payload = map[string]interface{}{"firstName": "Jane", "lastName": "Doe"}
	assert.Equal(t, "Google Sheets: Jane Doe", ProfileLabel(SourceKindSpreadsheet, payload))

	assert.Equal(t, "Google Sheets: Google Sheets Data",
		ProfileLabel(SourceKindSpreadsheet, map[string]interface{}{}))
}

func TestStripMetadata(t *testing.T) {
	payload := map[string]interface{}{
		"userId":        "u1",
		"employeeId":    "e1",
		"email":         "j@x.com",
		"spreadsheetId": "s1",
		"rowNumber":     "3",
		"name":          "Jane",
		"phone":         "555",
		"empty":         "",
		"nope":          false,
		"zero":          float64(0),
		"active":        true,
	}

	fields := StripMetadata(payload)
	assert.Equal(t, map[string]interface{}{
		"name":   "Jane",
		"phone":  "555",
		"active": true,
	}, fields)
}

func TestRowNumber(t *testing.T) {
	assert.Equal(t, "7", RowNumber(map[string]interface{}{"rowNumber": "7"}, 2))
	assert.Equal(t, "9", RowNumber(map[string]interface{}{"row": float64(9)}, 2))
	assert.Equal(t, "3", RowNumber(map[string]interface{}{}, 2))
	assert.Equal(t, "1", RowNumber(map[string]interface{}{}, 0))
}

func TestFindEmail(t *testing.T) {
	t.Run("order over payload iteration", func(t *testing.T) {
		payload := map[string]interface{}{
			"zapierUserEmail": "second@x.com",
			"email":           "first@x.com",
		}
		assert.Equal(t, "first@x.com", FindEmail(payload, bodyEmailKeys))
	})

	t.Run("case-insensitive key match and value normalization", func(t *testing.T) {
		payload := map[string]interface{}{"UserEmail": "  Jane@Example.COM  "}
		assert.Equal(t, "jane@example.com", FindEmail(payload, bodyEmailKeys))
	})

	t.Run("no candidate present", func(t *testing.T) {
		payload := map[string]interface{}{"name": "Jane"}
		assert.Equal(t, "", FindEmail(payload, bodyEmailKeys))
	})

	t.Run("exact-case key wins over case variants", func(t *testing.T) {
		payload := map[string]interface{}{
			"Email": "variant@x.com",
			"email": "exact@x.com",
		}
		assert.Equal(t, "exact@x.com", FindEmail(payload, bodyEmailKeys))
	})

	t.Run("case variants resolve deterministically", func(t *testing.T) {
		payload := map[string]interface{}{
			"EMAIL": "upper@x.com",
			"Email": "title@x.com",
		}
		for i := 0; i < 20; i++ {
			assert.Equal(t, "upper@x.com", FindEmail(payload, bodyEmailKeys))
		}
	})
}
