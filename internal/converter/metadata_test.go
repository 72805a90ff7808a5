package converter

import "testing"

const indexFixture = `<html><head><title>الجواب الكافي - المكتبة الشاملة</title></head><body>
<h1><a href="/book/1">الجواب الكافي لمن سأل عن الدواء الشافي</a></h1>
<div class="betaka-index">
<h3>بطاقة الكتاب</h3>
الكتاب: الجواب الكافي لمن سأل عن الدواء الشافي أو الداء والدواء<br>
المؤلف: ابن قيم الجوزية<br>
الناشر:   دار المعرفة - المغرب<br>
الطبعة: الأولى<br>
عدد الصفحات: 227<br>
صفحة المؤلف: [<a href="/author/1">ابن القيم</a>]
</div>
<div class="text-left"><a href="/book/1/1">المقدمة</a></div>
</body></html>`

func TestParseMetadata(t *testing.T) {
	md := ParseMetadata(indexFixture, "")

	tests := []struct {
		field, got, want string
	}{
		{"Title", md.Title, "الجواب الكافي لمن سأل عن الدواء الشافي"},
		{"BookTitle", md.BookTitle, "الجواب الكافي لمن سأل عن الدواء الشافي أو الداء والدواء"},
		{"Author", md.Author, "ابن قيم الجوزية"},
		{"AuthorPage", md.AuthorPage, "ابن القيم"},
		{"Publisher", md.Publisher, "دار المعرفة - المغرب"},
		{"Edition", md.Edition, "الأولى"},
		{"Pages", md.Pages, "227"},
		{"Language", md.Language, "ar"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}
	if md.DisplayTitle() != md.BookTitle {
		t.Errorf("DisplayTitle() = %q", md.DisplayTitle())
	}
}

func TestParseMetadata_Fallbacks(t *testing.T) {
	md := ParseMetadata(`<html><head><title>كتاب الزهد</title></head><body><p>نص</p></body></html>`, "")
	if md.Title != "كتاب الزهد" || md.BookTitle != "" || md.Author != "" {
		t.Fatalf("metadata = %+v", md)
	}

	md = ParseMetadata(`<html><body></body></html>`, "")
	if md.Title != defaultTitle {
		t.Fatalf("Title = %q, want default", md.Title)
	}
}

func TestParseMetadata_InfoBlock(t *testing.T) {
	info := `<div><p>المؤلف: أحمد</p><p>الناشر: دار السلام</p></div>`
	md := ParseMetadata(indexFixture, info)
	if md.Author != "أحمد" || md.Publisher != "دار السلام" {
		t.Fatalf("metadata = %+v", md)
	}
	if md.BookTitle != "" {
		t.Fatalf("BookTitle = %q, want only fields from the info block", md.BookTitle)
	}
	if md.Creator() != "أحمد" {
		t.Fatalf("Creator() = %q", md.Creator())
	}
}

func TestParseMetadata_EntitiesDecodedOnce(t *testing.T) {
	index := `<html><body><h1><a href="/book/1">فتح &amp;lt;الباري&amp;gt;</a></h1>
<div><h3>بطاقة الكتاب</h3><p>الناشر: دار&nbsp;الفكر &amp; السلام</p></div></body></html>`
	md := ParseMetadata(index, "")
	if md.Title != "فتح &lt;الباري&gt;" {
		t.Fatalf("Title = %q", md.Title)
	}
	if md.Publisher != "دار الفكر & السلام" {
		t.Fatalf("Publisher = %q", md.Publisher)
	}
}
