package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func extractPlain(raw []byte, source string) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported binary format: %s", source)
	}
	return strings.TrimSpace(string(raw)), nil
}
