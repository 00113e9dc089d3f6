package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
)

// DefaultCaseField is the district field of the Seoul confirmed-case export.
const DefaultCaseField = "corona19_area"

// DecodeCases reads confirmed-case records. Both the open-data envelope
// {"DATA": [...]} and a bare array are accepted. Records without the district
// field keep an empty district and are later dropped as unmatched.
func DecodeCases(data []byte, field string) ([]districtstats.CaseRecord, error) {
	if field == "" {
		field = DefaultCaseField
	}
	trimmed := bytes.TrimSpace(data)

	var records []map[string]json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode cases array: %w", err)
		}
	} else {
		var envelope struct {
			Data []map[string]json.RawMessage `json:"DATA"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode cases: %w", err)
		}
		records = envelope.Data
	}

	out := make([]districtstats.CaseRecord, len(records))
	for i, r := range records {
		out[i] = districtstats.CaseRecord{District: rawString(r[field])}
	}
	return out, nil
}
