package secrets

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/service_account.json
var serviceAccountSchema []byte

const serviceAccountSchemaURL = "mem://schema/service_account.json"

var compileServiceAccountSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(serviceAccountSchemaURL, bytes.NewReader(serviceAccountSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(serviceAccountSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// Status reports which integrations a resolved configuration enables.
type Status struct {
	AnthropicAPI     bool     `json:"anthropic_api" yaml:"anthropic_api"`
	Firebase         bool     `json:"firebase" yaml:"firebase"`
	Admin            bool     `json:"admin" yaml:"admin"`
	AWSRegion        bool     `json:"aws_region" yaml:"aws_region"`
	FirebaseProblems []string `json:"firebase_problems,omitempty" yaml:"firebase_problems,omitempty"`
}

// Complete reports whether every integration is configured.
func (st Status) Complete() bool {
	return st.AnthropicAPI && st.Firebase && st.Admin && st.AWSRegion
}

// Check inspects s. Firebase counts as configured when it has a project_id
// and admin when it has an email. Schema violations in the firebase section
// are listed in FirebaseProblems without affecting the booleans.
func Check(s *Secrets) Status {
	fb, hasFirebase := s.Section(KeyFirebase)
	admin, hasAdmin := s.Section(KeyAdmin)

	st := Status{
		AnthropicAPI: s.Contains(KeyAnthropicAPIKey),
		Firebase:     hasFirebase && sectionString(fb, "project_id") != "",
		Admin:        hasAdmin && sectionString(admin, "email") != "",
		AWSRegion:    s.AWS().Region != "",
	}
	if hasFirebase {
		st.FirebaseProblems = ValidateServiceAccount(fb)
	}
	return st
}

// ValidateServiceAccount checks a firebase section against the service
// account schema and returns one message per violation.
func ValidateServiceAccount(sec Section) []string {
	schema, err := compileServiceAccountSchema()
	if err != nil {
		return []string{err.Error()}
	}
	err = schema.Validate(map[string]any(sec))
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var problems []string
	collectSchemaProblems(ve, &problems)
	if len(problems) == 0 {
		problems = append(problems, ve.Message)
	}
	return problems
}

func collectSchemaProblems(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.Message))
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaProblems(cause, out)
	}
}
