package xray

import (
	"bufio"
	"regexp"
	"strings"

	"linkdrop/internal/xray/parser"
)

var regexLink = regexp.MustCompile(`(?i)(vmess|vless|trojan|ss)://[a-zA-Z0-9_\-\.\:@\?=&%#+/\[\]~]+`)

// ExtractLinks pulls every share link out of free text, in order of first appearance.
func ExtractLinks(text string) []string {
	var links []string
	text = strings.ReplaceAll(text, "\r\n", "\n")
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		matches := regexLink.FindAllString(line, -1)
		for _, match := range matches {
			clean := strings.TrimRight(match, ".,;)\"")
			if clean != "" {
				links = append(links, clean)
			}
		}
	}
	return deduplicate(links)
}

// ExtractSubscription handles a subscription body, which is either plain text or the
// base64 of it.
func ExtractSubscription(body string) []string {
	if links := ExtractLinks(body); len(links) > 0 {
		return links
	}
	decoded, err := parser.DecodeBase64(strings.Join(strings.Fields(body), ""))
	if err != nil {
		return nil
	}
	return ExtractLinks(decoded)
}

func deduplicate(input []string) []string {
	keys := make(map[string]bool)
	list := []string{}
	for _, entry := range input {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}
