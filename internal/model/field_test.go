package model

import (
	"reflect"
	"testing"
)

func TestFieldTypeNames(t *testing.T) {
	tests := []struct {
		ft   FieldType
		name string
	}{
		{FieldText, "text"},
		{FieldNumber, "number"},
		{FieldSingleSelect, "single_select"},
		{FieldMultiSelect, "multi_select"},
		{FieldDate, "date"},
		{FieldCheckbox, "checkbox"},
		{FieldPerson, "person"},
		{FieldPhone, "phone"},
		{FieldURL, "url"},
		{FieldAttachment, "attachment"},
		{FieldLink, "link"},
		{FieldFormula, "formula"},
		{FieldCreatedTime, "created_time"},
		{FieldModifiedTime, "modified_time"},
		{FieldCreatedBy, "created_by"},
		{FieldModifiedBy, "modified_by"},
		{FieldAutoNumber, "auto_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ft.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			parsed, err := ParseFieldType(tt.name)
			if err != nil {
				t.Fatalf("ParseFieldType(%q) returned error: %v", tt.name, err)
			}
			if parsed != tt.ft {
				t.Errorf("ParseFieldType(%q) = %d, want %d", tt.name, parsed, tt.ft)
			}
		})
	}
}

func TestParseFieldType_Unknown(t *testing.T) {
	if _, err := ParseFieldType("hyperlink"); err == nil {
		t.Error("expected error for unknown type name")
	}
}

func TestFieldType_HasOptions(t *testing.T) {
	if !FieldSingleSelect.HasOptions() || !FieldMultiSelect.HasOptions() {
		t.Error("select types must carry options")
	}
	for _, ft := range []FieldType{FieldText, FieldNumber, FieldDate, FieldCreatedTime} {
		if ft.HasOptions() {
			t.Errorf("%s must not carry options", ft)
		}
	}
}

func TestFieldDefinition_ToAPI_SelectRoundTrip(t *testing.T) {
	def := FieldDefinition{
		Name:    "ステータス",
		Type:    FieldSingleSelect,
		Options: []string{"リード", "商談中", "契約済み", "休眠"},
	}

	api := def.ToAPI()
	if api.FieldName != def.Name {
		t.Errorf("FieldName = %q, want %q", api.FieldName, def.Name)
	}
	if api.Type != 3 {
		t.Errorf("Type = %d, want 3", api.Type)
	}
	if api.Property == nil {
		t.Fatal("select field with options must carry a property block")
	}

	back := FieldFromAPI(api)
	if back.Type != FieldSingleSelect {
		t.Errorf("round-trip type = %s, want single_select", back.Type)
	}
	if !reflect.DeepEqual(back.Options, def.Options) {
		t.Errorf("round-trip options = %v, want %v (order preserved)", back.Options, def.Options)
	}
}

func TestFieldDefinition_ToAPI_NoPropertyForPlainTypes(t *testing.T) {
	tests := []struct {
		name string
		def  FieldDefinition
	}{
		{"text", FieldDefinition{Name: "備考", Type: FieldText}},
		{"created time", FieldDefinition{Name: "作成日", Type: FieldCreatedTime}},
		{"select without options", FieldDefinition{Name: "ステータス", Type: FieldSingleSelect}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if api := tt.def.ToAPI(); api.Property != nil {
				t.Errorf("unexpected property block: %+v", api.Property)
			}
		})
	}
}

func TestTableDefinition_Clone(t *testing.T) {
	src := TableDefinition{
		Name: "顧客管理",
		Fields: []FieldDefinition{
			{Name: "ステータス", Type: FieldSingleSelect, Options: []string{"リード"}},
		},
	}

	dst := src.Clone()
	dst.Fields[0].Options[0] = "changed"
	dst.Fields[0].Name = "changed"

	if src.Fields[0].Options[0] != "リード" {
		t.Error("clone shares options slice with source")
	}
	if src.Fields[0].Name != "ステータス" {
		t.Error("clone shares field slice with source")
	}
}

func TestDesign_Summary(t *testing.T) {
	d := Design{
		Name:        "顧客管理Base",
		Description: "顧客管理用のBitable",
		Tables: []TableDefinition{
			{
				Name: "顧客管理",
				Fields: []FieldDefinition{
					{Name: "会社名", Type: FieldText},
					{Name: "ステータス", Type: FieldSingleSelect, Options: []string{"リード", "商談中"}},
				},
			},
		},
	}

	sum := d.Summary()
	if sum.Name != d.Name {
		t.Errorf("summary name = %q, want %q", sum.Name, d.Name)
	}
	if len(sum.Tables) != 1 || len(sum.Tables[0].Fields) != 2 {
		t.Fatalf("unexpected summary shape: %+v", sum)
	}
	if sum.Tables[0].Fields[1].Type != "single_select" {
		t.Errorf("summary type = %q, want %q", sum.Tables[0].Fields[1].Type, "single_select")
	}
}
