package prompts

import (
	"testing"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
)

func strPtr(s string) *string { return &s }

func TestRenderSubstitutesVariables(t *testing.T) {
	m := NewManager()
	if err := m.Create("greet", "Hello {{name}}, welcome to {{place}}!", []Variable{
		{Name: "name"},
		{Name: "place", Default: strPtr("the team")},
	}, nil); err != nil {
		t.Fatal(err)
	}

	rendered, usageID, err := m.Render("greet", map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if rendered != "Hello Ada, welcome to the team!" {
		t.Errorf("rendered = %q", rendered)
	}
	if usageID == "" {
		t.Error("usage id must not be empty")
	}
}

func TestRenderMissingRequiredVariable(t *testing.T) {
	m := NewManager()
	if err := m.Create("greet", "Hello {{name}}", []Variable{{Name: "name"}}, nil); err != nil {
		t.Fatal(err)
	}

	_, _, err := m.Render("greet", nil)
	if !aierrors.IsKind(err, aierrors.KindMissingVariable) {
		t.Fatalf("error = %v, want missing_variable", err)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	m := NewManager()
	_, _, err := m.Render("nope", nil)
	if !aierrors.IsKind(err, aierrors.KindTemplateNotFound) {
		t.Fatalf("error = %v, want template_not_found", err)
	}
}

func TestCreateVersionPromotesActive(t *testing.T) {
	m := NewManager()
	if err := m.Create("sum", "Summarize: {{text}}", []Variable{{Name: "text"}}, nil); err != nil {
		t.Fatal(err)
	}

	n, err := m.CreateVersion("sum", "Summarize briefly: {{text}}", []Variable{{Name: "text"}}, nil, true)
	if err != nil {
		t.Fatalf("CreateVersion() error = %v", err)
	}
	if n != 2 {
		t.Errorf("version number = %d, want 2", n)
	}

	rendered, _, err := m.Render("sum", map[string]string{"text": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if rendered != "Summarize briefly: x" {
		t.Errorf("rendered = %q, want the promoted version", rendered)
	}

	tpl, ok := m.Get("sum")
	if !ok || len(tpl.Versions) != 2 {
		t.Fatalf("history lost: %+v", tpl)
	}
	if tpl.Versions[0].Active {
		t.Error("old version still active")
	}
	if !tpl.Versions[1].Active {
		t.Error("new version not active")
	}
}

func TestCreateVersionWithoutActivation(t *testing.T) {
	m := NewManager()
	if err := m.Create("sum", "v1 {{text}}", []Variable{{Name: "text"}}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateVersion("sum", "v2 {{text}}", []Variable{{Name: "text"}}, nil, false); err != nil {
		t.Fatal(err)
	}

	rendered, _, err := m.Render("sum", map[string]string{"text": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if rendered != "v1 x" {
		t.Errorf("rendered = %q, inactive version must not be used", rendered)
	}
}

func TestRecordPerformance(t *testing.T) {
	m := NewManager()
	if err := m.Create("greet", "Hello {{name}}", []Variable{{Name: "name"}}, nil); err != nil {
		t.Fatal(err)
	}
	_, usageID, err := m.Render("greet", map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.RecordPerformance(usageID, map[string]interface{}{"latency_ms": 120}); err != nil {
		t.Fatalf("RecordPerformance() error = %v", err)
	}
	if err := m.RecordPerformance("missing", nil); err == nil {
		t.Error("unknown usage id must fail")
	}

	usage := m.Usage("greet")
	if len(usage) != 1 || len(usage[0].Metrics) != 1 {
		t.Fatalf("usage = %+v", usage)
	}
	if usage[0].Metrics[0]["latency_ms"] != 120 {
		t.Errorf("metrics = %v", usage[0].Metrics[0])
	}
}
