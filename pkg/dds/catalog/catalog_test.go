package catalog

import (
	"testing"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	for _, name := range []string{"github", "fitbit", "instagram", "googlecontacts", "dds"} {
		if _, ok := c.Provider(name); !ok {
			t.Errorf("provider %s missing", name)
		}
	}

	t.Run("lookup variable", func(t *testing.T) {
		provider, cat, ok := c.LookupVariable("dds.github.activities.average")
		if !ok {
			t.Fatal("variable should be known")
		}
		if provider != "github" || cat.VariableType != ddsTypes.VARIABLE_TYPE_SCALE || cat.Fractional {
			t.Errorf("unexpected category: %s %+v", provider, cat)
		}
	})

	t.Run("fractional category", func(t *testing.T) {
		cat, ok := c.Lookup("github", "activities.average_precise")
		if !ok || !cat.Fractional || cat.Precision != 1 {
			t.Errorf("unexpected category: %+v", cat)
		}
	})

	t.Run("categories are copies", func(t *testing.T) {
		cats := c.Categories("fitbit")
		cats[0].Name = "changed"
		if c.Categories("fitbit")[0].Name == "changed" {
			t.Error("catalog mutated through accessor")
		}
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldFail bool
	}{
		{
			name: "valid",
			input: `
providers:
  - name: p
    type: oauth
    categories:
      - name: c
        variableType: String
`,
		},
		{
			name: "duplicate provider",
			input: `
providers:
  - name: p
    type: oauth
  - name: p
    type: oauth
`,
			shouldFail: true,
		},
		{
			name: "duplicate category",
			input: `
providers:
  - name: p
    type: oauth
    categories:
      - name: c
        variableType: String
      - name: c
        variableType: Scale
`,
			shouldFail: true,
		},
		{
			name: "unknown variable type",
			input: `
providers:
  - name: p
    type: oauth
    categories:
      - name: c
        variableType: Number
`,
			shouldFail: true,
		},
		{
			name: "fractional string",
			input: `
providers:
  - name: p
    type: oauth
    categories:
      - name: c
        variableType: String
        fractional: true
`,
			shouldFail: true,
		},
		{
			name: "unknown provider type",
			input: `
providers:
  - name: p
    type: magic
`,
			shouldFail: true,
		},
		{
			name: "unknown field",
			input: `
providers:
  - name: p
    type: oauth
    color: red
`,
			shouldFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if tt.shouldFail && err == nil {
				t.Error("should produce error")
			}
			if !tt.shouldFail && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateDefinitions(t *testing.T) {
	c := Default()

	t.Run("valid definitions", func(t *testing.T) {
		err := c.ValidateDefinitions([]ddsTypes.CustomVariable{
			{Provider: "github", Category: "activities.average", VariableType: ddsTypes.VARIABLE_TYPE_SCALE},
			{Provider: "fitbit", Category: "steps.average"},
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		err := c.ValidateDefinitions([]ddsTypes.CustomVariable{
			{Provider: "github", Category: "stars.count"},
		})
		if !ddsTypes.IsKind(err, ddsTypes.ERROR_KIND_CONFIGURATION) {
			t.Errorf("expected configuration error, got %v", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		err := c.ValidateDefinitions([]ddsTypes.CustomVariable{
			{Provider: "myspace", Category: "friends.count"},
		})
		if !ddsTypes.IsKind(err, ddsTypes.ERROR_KIND_CONFIGURATION) {
			t.Errorf("expected configuration error, got %v", err)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		err := c.ValidateDefinitions([]ddsTypes.CustomVariable{
			{Provider: "github", Category: "account.created_date", VariableType: ddsTypes.VARIABLE_TYPE_STRING},
		})
		if err == nil {
			t.Error("should produce error")
		}
	})

	t.Run("duplicates", func(t *testing.T) {
		err := c.ValidateDefinitions([]ddsTypes.CustomVariable{
			{Provider: "github", Category: "followers.count"},
			{Provider: "github", Category: "followers.count"},
		})
		if err == nil {
			t.Error("should produce error")
		}
	})
}
