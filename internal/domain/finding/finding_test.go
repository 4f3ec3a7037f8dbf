package finding

import (
	"strings"
	"testing"
)

func TestExtract_Patterns(t *testing.T) {
	text := "Key finding: legacy ERP runs on unsupported OS. " +
		"Critical - no disaster recovery plan exists! " +
		"Recommendations: migrate batch jobs to managed services?"

	got := Extract(text)
	want := []string{
		"legacy ERP runs on unsupported OS",
		"no disaster recovery plan exists",
		"migrate batch jobs to managed services",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d findings %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("finding %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtract_LengthBounds(t *testing.T) {
	tooShort := "Important: short one."
	if got := Extract(tooShort); len(got) != 0 {
		t.Errorf("expected phrase of 9 chars to be dropped, got %q", got)
	}

	tooLong := "Issue: " + strings.Repeat("x", 250) + "."
	if got := Extract(tooLong); len(got) != 0 {
		t.Errorf("expected overlong phrase to be dropped, got %d findings", len(got))
	}
}

func TestExtract_CapAndDedup(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("Issue: database replicas lag behind primary. ")
	}
	if got := Extract(b.String()); len(got) != 1 {
		t.Errorf("expected duplicates collapsed to 1, got %d", len(got))
	}

	many := "Issue: first distinct problem here. Issue: second distinct problem here. " +
		"Issue: third distinct problem here. Issue: fourth distinct problem here. " +
		"Issue: fifth distinct problem here. Issue: sixth distinct problem here."
	if got := Extract(many); len(got) != MaxFindings {
		t.Errorf("expected cap of %d, got %d", MaxFindings, len(got))
	}
}

func TestExtract_Empty(t *testing.T) {
	if got := Extract(""); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	if got := Extract("Nothing notable in this paragraph."); len(got) != 0 {
		t.Errorf("expected no findings, got %v", got)
	}
}
