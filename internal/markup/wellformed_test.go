package markup

import (
	"strings"
	"testing"
)

func TestCheckWellFormed(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "declared prefix", in: `<a xmlns:epub="http://www.idpf.org/2007/ops"><b epub:type="x"/></a>`},
		{name: "xml prefix", in: `<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="ar"/>`},
		{name: "prolog", in: "<?xml version=\"1.0\"?>\n<!DOCTYPE html>\n<html/>\n"},
		{name: "undeclared attribute prefix", in: `<a><b epub:type="x"/></a>`, wantErr: true},
		{name: "undeclared element prefix", in: `<epub:a/>`, wantErr: true},
		{name: "multiple roots", in: `<a></a><b></b>`, wantErr: true},
		{name: "unclosed", in: `<a><b></b>`, wantErr: true},
		{name: "html entity", in: `<a>&nbsp;</a>`, wantErr: true},
		{name: "text outside root", in: `text<a/>`, wantErr: true},
		{name: "empty", in: ``, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWellFormed([]byte(tt.in))
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRender_Escaping(t *testing.T) {
	f := Fragment{
		Elem("p", A("class", `x"y`), Text("a<b&c>"), Elem("br", nil)),
	}
	want := `<p class="x&quot;y">a&lt;b&amp;c&gt;<br/></p>`
	if got := f.Render(); got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestPage_Render(t *testing.T) {
	plain := Page{Title: "فصل", Stylesheet: "../css/style.css", Body: Fragment{Elem("p", nil, Text("نص"))}}.Render()
	for _, want := range []string{`dir="rtl"`, `xml:lang="ar"`, `href="../css/style.css"`, "<title>فصل</title>"} {
		if !strings.Contains(string(plain), want) {
			t.Fatalf("page missing %s:\n%s", want, plain)
		}
	}
	if strings.Contains(string(plain), "xmlns:epub") {
		t.Fatal("epub namespace declared without epub attributes")
	}
	if err := CheckWellFormed(plain); err != nil {
		t.Fatalf("page not well-formed: %v", err)
	}

	nav := Page{Title: "nav", Body: Fragment{Elem("nav", A("epub:type", "toc"), Elem("ol", nil))}}.Render()
	if !strings.Contains(string(nav), `xmlns:epub="http://www.idpf.org/2007/ops"`) {
		t.Fatalf("epub namespace not declared:\n%s", nav)
	}
	if err := CheckWellFormed(nav); err != nil {
		t.Fatalf("nav not well-formed: %v", err)
	}
}
