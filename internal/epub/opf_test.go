package epub

import "testing"

const epub2OPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:identifier id="isbn">978-0000000000</dc:identifier>
    <dc:identifier id="uid">urn:uuid:1234</dc:identifier>
    <dc:title>الجواب الكافي</dc:title>
    <dc:creator>ابن قيم الجوزية</dc:creator>
    <dc:creator>محقق</dc:creator>
    <dc:language>ar</dc:language>
    <dc:publisher>دار المعرفة</dc:publisher>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="c1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx" page-progression-direction="rtl">
    <itemref idref="c1"/>
    <itemref idref="c2" linear="no"/>
  </spine>
</package>`

func TestParseOPF(t *testing.T) {
	opf, err := ParseOPF([]byte(epub2OPF), "OEBPS")
	if err != nil {
		t.Fatalf("ParseOPF() error = %v", err)
	}

	md := opf.Metadata
	if md.Title != "الجواب الكافي" || md.Language != "ar" || md.Publisher != "دار المعرفة" {
		t.Errorf("metadata = %+v", md)
	}
	if md.Identifier != "urn:uuid:1234" {
		t.Errorf("Identifier = %q, want the unique identifier", md.Identifier)
	}
	if len(md.Creators) != 2 {
		t.Errorf("Creators = %v", md.Creators)
	}

	if got := opf.Manifest["c1"].Href; got != "OEBPS/text/ch1.xhtml" {
		t.Errorf("href = %q", got)
	}
	if opf.NCXPath != "OEBPS/toc.ncx" {
		t.Errorf("NCXPath = %q", opf.NCXPath)
	}
	if opf.PageProgressionDirection != "rtl" {
		t.Errorf("direction = %q", opf.PageProgressionDirection)
	}
	if len(opf.Spine) != 2 || !opf.Spine[0].Linear || opf.Spine[1].Linear {
		t.Errorf("spine = %+v", opf.Spine)
	}
	if !opf.InSpine("c2") || opf.InSpine("ncx") {
		t.Error("InSpine() mismatch")
	}

	cover, ok := opf.FindCoverImage()
	if !ok || cover != "OEBPS/images/cover.jpg" {
		t.Errorf("FindCoverImage() = %q, %v", cover, ok)
	}
}

func TestParseOPF_Invalid(t *testing.T) {
	if _, err := ParseOPF([]byte("<package><metadata>"), ""); err == nil {
		t.Fatal("expected error for truncated OPF")
	}
}
