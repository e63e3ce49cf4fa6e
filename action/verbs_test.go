package action

import "testing"

func TestConjugateKnownIrregulars(t *testing.T) {
	act, gerund := Conjugate("run")
	if act != "runs" || gerund != "running" {
		t.Fatalf("got %q, %q", act, gerund)
	}
	act, gerund = Conjugate("be")
	if act != "is" || gerund != "being" {
		t.Fatalf("got %q, %q", act, gerund)
	}
}

func TestConjugateThirdPersonSuffixRules(t *testing.T) {
	cases := map[string]string{
		"fix":     "fixes",
		"wash":    "washes",
		"reach":   "reaches",
		"buzz":    "buzzes",
		"try":     "tries",
		"publish": "publishes",
	}
	for verb, want := range cases {
		act, _ := Conjugate(verb)
		if act != want {
			t.Errorf("Conjugate(%q) act = %q, want %q", verb, act, want)
		}
	}
}

func TestConjugateGerundDropE(t *testing.T) {
	act, gerund := Conjugate("complete")
	if act != "completes" {
		t.Fatalf("act = %q", act)
	}
	if gerund != "completing" {
		t.Fatalf("gerund = %q, want drop-e form", gerund)
	}
}

func TestConjugateGerundKeepsDoubleE(t *testing.T) {
	_, gerund := Conjugate("agree")
	if gerund != "agreeing" {
		t.Fatalf("got %q, double-e verbs must not drop the e", gerund)
	}
}

func TestConjugateGerundIERule(t *testing.T) {
	_, gerund := Conjugate("tie")
	if gerund != "tying" {
		t.Fatalf("got %q", gerund)
	}
}

func TestConjugateGerundCVCDoubling(t *testing.T) {
	_, gerund := Conjugate("cap")
	if gerund != "capping" {
		t.Fatalf("got %q", gerund)
	}
}

func TestConjugateGerundCVCExceptionsDoNotDouble(t *testing.T) {
	for _, verb := range []string{"tow", "fix", "toy"} {
		_, gerund := Conjugate(verb)
		if gerund == verb+string(verb[len(verb)-1])+"ing" {
			t.Errorf("%q should not double its final consonant, got %q", verb, gerund)
		}
	}
}

func TestConjugateDefaultAppendsIng(t *testing.T) {
	_, gerund := Conjugate("process")
	if gerund != "processing" {
		t.Fatalf("got %q", gerund)
	}
}
