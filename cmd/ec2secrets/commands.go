package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dbmigration/ec2secrets/internal/secrets"
)

const rule = "============================================================"

// writeStatus prints the operator report. Credentials are masked.
func writeStatus(w io.Writer, s *secrets.Secrets) {
	red := secrets.Redacted(s)

	fmt.Fprintf(w, "\n%s\nAWS Database Migration Analyzer - EC2 Configuration Status\n%s\n", rule, rule)
	fmt.Fprintf(w, "\nConfiguration sections: [%s]\n", strings.Join(s.Keys(), ", "))

	src := s.Sources()
	fmt.Fprintf(w, "\nSources:\n   Env file: %s\n   Firebase config: %s\n", orNone(src.EnvFile), orNone(src.ConfigFile))

	fmt.Fprintln(w, "\nAnthropic AI:")
	if s.Contains(secrets.KeyAnthropicAPIKey) {
		fmt.Fprintf(w, "   API Key: %s\n", red.Scalar(secrets.KeyAnthropicAPIKey))
	} else {
		fmt.Fprintln(w, "   Not configured (AI features disabled)")
	}

	fmt.Fprintln(w, "\nFirebase:")
	if fb, ok := s.Section(secrets.KeyFirebase); ok {
		fmt.Fprintf(w, "   Project ID: %s\n", fieldOr(fb, "project_id", "Not set"))
		fmt.Fprintf(w, "   Client Email: %s\n", fieldOr(fb, "client_email", "Not set"))
		fmt.Fprintf(w, "   Web API Key: %s\n", setMark(fb, "web_api_key"))
	} else {
		fmt.Fprintln(w, "   Not configured (running in demo mode)")
	}

	fmt.Fprintln(w, "\nAdmin:")
	if admin, ok := s.Section(secrets.KeyAdmin); ok {
		fmt.Fprintf(w, "   Email: %s\n", fieldOr(admin, "email", "Not set"))
		fmt.Fprintf(w, "   Password: %s\n", setMark(admin, "password"))
	} else {
		fmt.Fprintln(w, "   Not configured")
	}

	aws := s.AWS()
	fmt.Fprintln(w, "\nAWS:")
	fmt.Fprintf(w, "   Region: %s\n", aws.Region)
	fmt.Fprintf(w, "   Using IAM Role: %t\n", aws.UsesInstanceRole())

	if warnings := s.Warnings(); len(warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, msg := range warnings {
			fmt.Fprintf(w, "   %s\n", msg)
		}
	}
	fmt.Fprintf(w, "\n%s\n", rule)
}

type checkOutput struct {
	Status   secrets.Status `json:"status"`
	Complete bool           `json:"complete"`
	Warnings []string       `json:"warnings"`
}

func runCheck(stdout, stderr io.Writer, s *secrets.Secrets, strict bool) int {
	st := secrets.Check(s)
	out := checkOutput{Status: st, Complete: st.Complete(), Warnings: s.Warnings()}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "ec2secrets: encode status: %v\n", err)
		return exitUsage
	}
	if strict && !out.Complete {
		return exitIncomplete
	}
	return exitOK
}

func runShow(stdout, stderr io.Writer, s *secrets.Secrets, format string, reveal bool) int {
	if !reveal {
		s = secrets.Redacted(s)
	}
	doc := s.Map()

	var err error
	switch format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(doc)
	default:
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err = enc.Encode(plainNumbers(doc)); err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "ec2secrets: encode %s: %v\n", format, err)
		return exitUsage
	}
	return exitOK
}

// runExport prints the known variables one per line. Without --shell the
// output is a .env file the resolver reads back unchanged: values are wrapped
// in single quotes, which the loader strips verbatim. Multi-line values
// cannot be represented line by line and fall back to godotenv's escaped
// form with a warning. With --shell every value is quoted for POSIX sh.
func runExport(stdout, stderr io.Writer, env secrets.Environment, shell bool) int {
	vars := make(map[string]string)
	for _, key := range secrets.KnownVariables() {
		if v, ok := env.LookupEnv(key); ok && v != "" {
			vars[key] = v
		}
	}

	for _, key := range slices.Sorted(maps.Keys(vars)) {
		value := vars[key]
		if shell {
			fmt.Fprintf(stdout, "export %s=%s\n", key, shellQuote(value))
			continue
		}
		line, err := envLine(key, value)
		if err != nil {
			fmt.Fprintf(stderr, "ec2secrets: marshal env: %v\n", err)
			return exitUsage
		}
		if strings.ContainsAny(value, "\r\n") {
			fmt.Fprintf(stderr, "ec2secrets: %s spans several lines; it is written escaped and will not load back unchanged\n", key)
		}
		fmt.Fprintln(stdout, line)
	}
	return exitOK
}

func envLine(key, value string) (string, error) {
	switch {
	case strings.ContainsAny(value, "\r\n"):
		return godotenv.Marshal(map[string]string{key: value})
	case isDigits(value):
		return key + "=" + value, nil
	default:
		return key + "='" + value + "'", nil
	}
}

// shellQuote wraps v in single quotes, closing and reopening them around
// embedded single quotes.
func shellQuote(v string) string {
	if isDigits(v) {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

func isDigits(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// plainNumbers converts json.Number leaves so YAML prints them unquoted.
func plainNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plainNumbers(val)
		}
		return out
	case secrets.Section:
		return plainNumbers(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plainNumbers(val)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

func fieldOr(sec secrets.Section, field, def string) string {
	if v, ok := sec[field].(string); ok && v != "" {
		return v
	}
	return def
}

func setMark(sec secrets.Section, field string) string {
	if v, ok := sec[field].(string); ok && v != "" {
		return "Set"
	}
	return "Not set"
}

func orNone(path string) string {
	if path == "" {
		return "(none)"
	}
	return path
}
