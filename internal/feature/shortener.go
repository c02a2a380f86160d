package feature

import (
	"bufio"
	"os"
	"strings"
)

// builtinShorteners covers the major services when no list file ships with
// the deployment.
var builtinShorteners = []string{
	"bit.ly",
	"goo.gl",
	"tinyurl.com",
	"t.co",
	"ow.ly",
	"is.gd",
	"buff.ly",
}

// LoadShorteners reads shortener domains from a file, one per line, skipping
// blanks and # comments. A missing or unreadable file yields the builtin
// list.
func LoadShorteners(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		return builtinShorteners
	}
	defer func() { _ = file.Close() }()

	var domains []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if scanner.Err() != nil || len(domains) == 0 {
		return builtinShorteners
	}
	return domains
}
