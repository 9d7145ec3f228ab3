package text

import (
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadInstruction liest eine Instruktion aus r. UTF-8 ist der Default,
// ein UTF-16 BOM wird erkannt. Umgebender Whitespace wird entfernt.
func ReadInstruction(r io.Reader) (string, error) {
	tr := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	b, err := io.ReadAll(transform.NewReader(r, tr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
