package schema

import "testing"

func TestValidateTypeName(t *testing.T) {
	cases := map[string]bool{
		"Task":    true,
		"":        false,
		"id":      false,
		"Ta sk":   false,
		"Task_V2": true,
	}
	for name, ok := range cases {
		err := ValidateTypeName(name)
		if (err == nil) != ok {
			t.Errorf("ValidateTypeName(%q): err=%v, want ok=%v", name, err, ok)
		}
	}
}

func TestValidateTypeNameMaxLength(t *testing.T) {
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	if err := ValidateTypeName(string(long)); err == nil {
		t.Fatalf("expected error for over-length type name")
	}
}

func TestValidateEntityIDRejectsPathSeparators(t *testing.T) {
	if err := ValidateEntityID("../etc/passwd"); err == nil {
		t.Fatalf("expected error for path separator in entity id")
	}
	if err := ValidateEntityID("t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFieldNameRejectsDangerousNames(t *testing.T) {
	for _, name := range []string{"__proto__", "prototype", "constructor"} {
		if err := ValidateFieldName(name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestValidateFieldNameRejectsInvalidCharacters(t *testing.T) {
	for _, name := range []string{"a.b", "a[0]", "$id", "a b", "1abc"} {
		if err := ValidateFieldName(name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
	if err := ValidateFieldName("valid_name"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateNamespaceID(t *testing.T) {
	if err := ValidateNamespaceID("tenant-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateNamespaceID(""); err == nil {
		t.Fatalf("expected error for empty namespace")
	}
	if err := ValidateNamespaceID("has a space"); err == nil {
		t.Fatalf("expected error for namespace with a space")
	}
}

func TestValidateBatchSize(t *testing.T) {
	if err := ValidateBatchSize(1000); err != nil {
		t.Fatalf("1000 should be within the limit: %v", err)
	}
	if err := ValidateBatchSize(1001); err == nil {
		t.Fatalf("expected error above the limit")
	}
}

func TestEscapeLike(t *testing.T) {
	got := EscapeLike(`50%_off\now`)
	want := `50\%\_off\\now`
	if got != want {
		t.Fatalf("EscapeLike = %q, want %q", got, want)
	}
}
