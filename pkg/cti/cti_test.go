package cti

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/PhucNguyen204/query_translator/mappings"
)

const report = `Beacon to hxxp://evil[.]example/stage2.ps1 and 203.0.113.7, backup C2 bad-domain.example.
Dropper cmd.exe hash 44D88612FEA8A8F36DE82E1278ABB02F, also 203.0.113.7 again.
Phish from ops@evil.example; payload sha256 275a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f.
Not an IP: 999.1.1.1`

func TestExtract(t *testing.T) {
	got := Extract(report)
	want := []Indicator{
		{IP, "203.0.113.7"},
		{Domain, "bad-domain.example"},
		{URL, "http://evil.example/stage2.ps1"},
		{Email, "ops@evil.example"},
		{MD5, "44d88612fea8a8f36de82e1278abb02f"},
		{SHA256, "275a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("indicator %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func loadRenderer(t *testing.T, name string, tpl Template) *Renderer {
	t.Helper()
	r, err := LoadRenderer(mappings.FS, name, tpl)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return r
}

func TestRenderCrowdStrike(t *testing.T) {
	r := loadRenderer(t, "crowdstrike", CrowdStrikeTemplate)
	inds := []Indicator{{IP, "1.1.1.1"}, {MD5, "aa"}, {IP, "2.2.2.2"}}
	out, err := r.Render(inds, 0)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `((RemoteAddressIP4="1.1.1.1" OR RemoteAddressIP4="2.2.2.2") OR (MD5HashData="aa"))`
	if len(out) != 1 || out[0] != want {
		t.Fatalf("got %q\nwant %q", out, want)
	}

	out, err = r.Render(inds, 2)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(out) != 2 || out[1] != `(MD5HashData="aa")` {
		t.Fatalf("chunks = %q", out)
	}
}

func TestRenderQualysSkipsUnmappedTypes(t *testing.T) {
	r := loadRenderer(t, QualysName, QualysTemplate)
	out, err := r.Render([]Indicator{{URL, "http://x"}, {SHA256, "bb"}}, 10)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(out) != 1 || out[0] != "(file.hash.sha256:`bb`)" {
		t.Fatalf("got %q", out)
	}
	if _, err := r.Render([]Indicator{{URL, "http://x"}}, 10); !errors.Is(err, ErrNoIndicators) {
		t.Fatalf("want ErrNoIndicators, got %v", err)
	}
}

func TestLoadRendererRejectsUnknownType(t *testing.T) {
	fsys := fstest.MapFS{"cti/x.yml": {Data: []byte("fields:\n  mutex: [Name]\n")}}
	if _, err := LoadRenderer(fsys, "x", QualysTemplate); err == nil || !strings.Contains(err.Error(), "mutex") {
		t.Fatalf("got %v", err)
	}
}
