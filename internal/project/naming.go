package project

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/ethanolivertroy/depdetect/internal/codelocation"
)

// codeLocationName is the default name of a code location before collisions
// are resolved.
func codeLocationName(s Settings, projectName, projectVersion string, cl *codelocation.CodeLocation) string {
	rel := cl.RelativePath
	if rel == "" || rel == "." {
		rel = path.Base(path.Clean(strings.ReplaceAll(cl.SourcePath, "\\", "/")))
	}
	return fmt.Sprintf("%s%s/%s/%s %s bom%s",
		s.CodeLocationPrefix, projectName, projectVersion, rel, cl.Type, s.CodeLocationSuffix)
}

// EscapeFileName keeps letters, digits, '.', '_' and '-' and replaces
// everything else with '_'.
func EscapeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
