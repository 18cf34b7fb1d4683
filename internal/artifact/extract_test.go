package artifact

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantKey string
		wantErr bool
	}{
		{
			name:    "bare object",
			raw:     `{"company_name": "EcoThread"}`,
			wantKey: "company_name",
		},
		{
			name:    "markdown fenced",
			raw:     "Here is the scenario:\n```json\n{\"industry\": \"Fashion\"}\n```\nLet me know if you need changes.",
			wantKey: "industry",
		},
		{
			name:    "prose before and after",
			raw:     `Sure! {"location": "Amsterdam"} Hope that helps.`,
			wantKey: "location",
		},
		{
			name:    "braces inside strings",
			raw:     `{"message": "use {placeholders} like this", "id": "msg-1"}`,
			wantKey: "message",
		},
		{
			name:    "escaped quotes",
			raw:     `{"message": "the \"green\" label"}`,
			wantKey: "message",
		},
		{
			name:    "nested objects",
			raw:     `{"outer": {"inner": "value"}, "id": "msg-1"}`,
			wantKey: "outer",
		},
		{
			name:    "empty output",
			raw:     "   ",
			wantErr: true,
		},
		{
			name:    "no object",
			raw:     "I could not produce JSON this time.",
			wantErr: true,
		},
		{
			name:    "unbalanced braces",
			raw:     `{"company_name": "EcoThread"`,
			wantErr: true,
		},
		{
			name:    "malformed object",
			raw:     `{company_name: EcoThread}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := fields[tt.wantKey]; !ok {
				t.Errorf("expected key %q in %v", tt.wantKey, fields)
			}
		})
	}
}
