// Package cti turns threat-intel indicator lists (IPs, domains, URLs,
// e-mails, file hashes) into hunting queries for a target platform.
package cti

import (
	"net/netip"
	"regexp"
	"strings"
)

// Type is the generic indicator kind; mapping files key fields by it.
type Type string

const (
	IP     Type = "ip"
	Domain Type = "domain"
	URL    Type = "url"
	Email  Type = "email"
	MD5    Type = "md5"
	SHA1   Type = "sha1"
	SHA256 Type = "sha256"
)

// Types in render order.
var Types = []Type{IP, Domain, URL, Email, MD5, SHA1, SHA256}

type Indicator struct {
	Type  Type   `json:"type"`
	Value string `json:"value"`
}

var (
	refang = strings.NewReplacer("[.]", ".", "(.)", ".", "{.}", ".", "[:]", ":", "[@]", "@", "[at]", "@",
		"hxxps://", "https://", "hxxp://", "http://", "hXXps://", "https://", "hXXp://", "http://")

	reURL    = regexp.MustCompile(`(?i)\bhttps?://[^\s"'<>` + "`" + `]+`)
	reEmail  = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,63}\b`)
	reIPv4   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	reDomain = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,63}\b`)
	reSHA256 = regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)
	reSHA1   = regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)
	reMD5    = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)
)

// file extensions that look like a TLD: "cmd.exe" is not a domain
var fileSuffixes = map[string]bool{
	"exe": true, "dll": true, "sys": true, "bat": true, "cmd": true, "ps1": true, "vbs": true, "js": true,
	"txt": true, "log": true, "zip": true, "rar": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"pdf": true, "lnk": true, "tmp": true, "dat": true, "ini": true, "py": true, "sh": true,
}

// Extract finds indicators in free text. Defanged forms (hxxp, [.]) are
// refanged first. Values are de-duplicated per type, hashes lower-cased,
// and the result is ordered by Types then by first appearance.
func Extract(text string) []Indicator {
	text = refang.Replace(text)
	found := map[Type][]string{}
	seen := map[Indicator]bool{}
	add := func(t Type, v string) {
		if ind := (Indicator{Type: t, Value: v}); !seen[ind] {
			seen[ind] = true
			found[t] = append(found[t], v)
		}
	}

	// URL và email bị xoá khỏi text để domain bên trong không bị đếm lại
	for _, u := range reURL.FindAllString(text, -1) {
		add(URL, strings.TrimRight(u, ".,;:)]}"))
	}
	text = reURL.ReplaceAllString(text, " ")
	for _, e := range reEmail.FindAllString(text, -1) {
		add(Email, strings.ToLower(e))
	}
	text = reEmail.ReplaceAllString(text, " ")

	for _, ip := range reIPv4.FindAllString(text, -1) {
		if a, err := netip.ParseAddr(ip); err == nil && a.Is4() {
			add(IP, a.String())
		}
	}
	text = reIPv4.ReplaceAllString(text, " ")
	for _, d := range reDomain.FindAllString(text, -1) {
		tld := d[strings.LastIndexByte(d, '.')+1:]
		if !fileSuffixes[strings.ToLower(tld)] {
			add(Domain, strings.ToLower(d))
		}
	}

	for _, h := range reSHA256.FindAllString(text, -1) {
		add(SHA256, strings.ToLower(h))
	}
	for _, h := range reSHA1.FindAllString(text, -1) {
		add(SHA1, strings.ToLower(h))
	}
	for _, h := range reMD5.FindAllString(text, -1) {
		add(MD5, strings.ToLower(h))
	}

	var out []Indicator
	for _, t := range Types {
		for _, v := range found[t] {
			out = append(out, Indicator{Type: t, Value: v})
		}
	}
	return out
}
