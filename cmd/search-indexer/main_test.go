package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ENV", "test")
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExplain(t *testing.T) {
	out, err := runCLI(t, "explain", "Patient", "identifier=http://example.org|123&gender=male&bogus=1")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}

	for _, want := range []string{
		`SELECT "patient"."id" FROM "patient" WHERE (FALSE AND EXISTS`,
		`"patient_token"."system" = $2 AND "patient_token"."value" = $3`,
		`$2 = "http://example.org"`,
		`$3 = "123"`,
		`ignored: bogus`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestExplain_Strict(t *testing.T) {
	_, err := runCLI(t, "explain", "--strict", "Patient", "gender=male")
	if err == nil {
		t.Fatal("expected strict handling to reject a parameter that is not indexed")
	}
}

func TestExplain_UnknownType(t *testing.T) {
	if _, err := runCLI(t, "explain", "Spaceship", "identifier=1"); err == nil {
		t.Fatal("expected error for unknown resource type")
	}
}

func TestParams(t *testing.T) {
	out, err := runCLI(t, "params", "Patient")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"email", "case-insensitive", "identifier", "case-sensitive", "gender", "not-indexed"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestMigrateDDL(t *testing.T) {
	out, err := runCLI(t, "migrate", "ddl", "Observation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"observation_token"`) {
		t.Errorf("expected token table DDL, got:\n%s", out)
	}
}

func TestReadValueSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vs.json")
	body := `{"resourceType":"ValueSet","url":"http://example.org/vs","expansion":{"contains":[{"system":"http://loinc.org","code":"8480-6"}]}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	url, codings, err := readValueSet(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "http://example.org/vs" || len(codings) != 1 || codings[0].Code != "8480-6" {
		t.Errorf("unexpected result %s %+v", url, codings)
	}

	if _, _, err := readValueSet(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}
}
