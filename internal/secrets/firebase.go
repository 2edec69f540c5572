package secrets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var errNotJSONObject = errors.New("document is not a JSON object")

// loadFirebaseConfig reads a credential document from path and stores its
// compact encoding in FIREBASE_CONFIG_JSON.
func loadFirebaseConfig(env Environment, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := decodeObject(data)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return env.Setenv(EnvFirebaseConfigJSON, string(encoded))
}

// decodeObject decodes a JSON object, keeping numbers as json.Number so a
// re-encode does not alter them.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON document")
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, errNotJSONObject
	}
	return obj, nil
}

// buildFirebase prefers FIREBASE_CONFIG_JSON and falls back to the individual
// FIREBASE_* variables when it is unset, invalid or empty.
func buildFirebase(env Environment, rep *report) Section {
	if raw := getenv(env, EnvFirebaseConfigJSON); raw != "" {
		doc, err := decodeObject([]byte(raw))
		switch {
		case err != nil:
			rep.warnf("ignoring %s: %v", EnvFirebaseConfigJSON, err)
		case len(doc) > 0:
			return Section(doc)
		}
	}
	return buildFromVars(env, firebaseFields)
}

func buildFromVars(env Environment, fields []fieldSource) Section {
	sec := Section{}
	for _, f := range fields {
		if v := getenv(env, f.env); v != "" {
			sec[f.field] = v
		}
	}
	return sec
}
