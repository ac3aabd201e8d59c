package model

import "fmt"

// FieldType identifies a Bitable field type. Values are the numeric type
// tags the Lark Bitable API expects.
type FieldType int

const (
	FieldText         FieldType = 1
	FieldNumber       FieldType = 2
	FieldSingleSelect FieldType = 3
	FieldMultiSelect  FieldType = 4
	FieldDate         FieldType = 5
	FieldCheckbox     FieldType = 7
	FieldPerson       FieldType = 11
	FieldPhone        FieldType = 13
	FieldURL          FieldType = 15
	FieldAttachment   FieldType = 17
	FieldLink         FieldType = 18
	FieldFormula      FieldType = 20
	FieldCreatedTime  FieldType = 1001
	FieldModifiedTime FieldType = 1002
	FieldCreatedBy    FieldType = 1003
	FieldModifiedBy   FieldType = 1004
	FieldAutoNumber   FieldType = 1005
)

var fieldTypeNames = map[FieldType]string{
	FieldText:         "text",
	FieldNumber:       "number",
	FieldSingleSelect: "single_select",
	FieldMultiSelect:  "multi_select",
	FieldDate:         "date",
	FieldCheckbox:     "checkbox",
	FieldPerson:       "person",
	FieldPhone:        "phone",
	FieldURL:          "url",
	FieldAttachment:   "attachment",
	FieldLink:         "link",
	FieldFormula:      "formula",
	FieldCreatedTime:  "created_time",
	FieldModifiedTime: "modified_time",
	FieldCreatedBy:    "created_by",
	FieldModifiedBy:   "modified_by",
	FieldAutoNumber:   "auto_number",
}

var fieldTypesByName = func() map[string]FieldType {
	m := make(map[string]FieldType, len(fieldTypeNames))
	for ft, name := range fieldTypeNames {
		m[name] = ft
	}
	return m
}()

// String returns the snake_case name used in catalog data and design summaries.
func (ft FieldType) String() string {
	if name, ok := fieldTypeNames[ft]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(ft))
}

// Valid reports whether ft is one of the known field types.
func (ft FieldType) Valid() bool {
	_, ok := fieldTypeNames[ft]
	return ok
}

// HasOptions reports whether the type carries an options list.
func (ft FieldType) HasOptions() bool {
	return ft == FieldSingleSelect || ft == FieldMultiSelect
}

// ParseFieldType resolves a snake_case type name to a FieldType.
func ParseFieldType(name string) (FieldType, error) {
	if ft, ok := fieldTypesByName[name]; ok {
		return ft, nil
	}
	return 0, fmt.Errorf("unknown field type: %q", name)
}

// FieldDefinition describes a single Bitable field in a table design.
// Options is meaningful only for the select types.
type FieldDefinition struct {
	Name        string    `yaml:"name" json:"name"`
	Type        FieldType `yaml:"type" json:"type"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Options     []string  `yaml:"options,omitempty" json:"options,omitempty"`
	Required    bool      `yaml:"required,omitempty" json:"required,omitempty"`
}

// SelectOption is one choice of a select field in the remote API shape.
type SelectOption struct {
	Name string `json:"name"`
}

// FieldProperty carries the type-specific configuration of an APIField.
type FieldProperty struct {
	Options []SelectOption `json:"options"`
}

// APIField is the field shape the Bitable table-creation endpoint expects.
type APIField struct {
	FieldName string         `json:"field_name"`
	Type      int            `json:"type"`
	Property  *FieldProperty `json:"property,omitempty"`
}

// ToAPI converts the definition to the remote API shape. The property block
// is attached only for select fields that actually carry options.
func (f FieldDefinition) ToAPI() APIField {
	api := APIField{
		FieldName: f.Name,
		Type:      int(f.Type),
	}
	if f.Type.HasOptions() && len(f.Options) > 0 {
		prop := &FieldProperty{Options: make([]SelectOption, len(f.Options))}
		for i, opt := range f.Options {
			prop.Options[i] = SelectOption{Name: opt}
		}
		api.Property = prop
	}
	return api
}

// FieldFromAPI converts a remote API field back into a FieldDefinition.
func FieldFromAPI(api APIField) FieldDefinition {
	def := FieldDefinition{
		Name: api.FieldName,
		Type: FieldType(api.Type),
	}
	if api.Property != nil {
		def.Options = make([]string, len(api.Property.Options))
		for i, opt := range api.Property.Options {
			def.Options[i] = opt.Name
		}
	}
	return def
}

// UnmarshalYAML accepts the snake_case type names used in catalog data.
func (ft *FieldType) UnmarshalYAML(unmarshal func(any) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	parsed, err := ParseFieldType(name)
	if err != nil {
		return err
	}
	*ft = parsed
	return nil
}

// MarshalYAML emits the snake_case type name.
func (ft FieldType) MarshalYAML() (any, error) {
	if !ft.Valid() {
		return nil, fmt.Errorf("invalid field type: %d", int(ft))
	}
	return ft.String(), nil
}
