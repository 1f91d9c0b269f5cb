package merge

import (
	"bytes"
	"fmt"
	"os"

	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

const (
	beginBanner = "===== BEGIN TESTIMONY =====\n"
	endBanner   = "===== END TESTIMONY =====\n"
	separator   = "\n\n"
)

// TextSource lists extracted text files.
type TextSource interface {
	Texts() ([]testimony.DocumentID, error)
	TextPath(id testimony.DocumentID) string
}

// BuildText concatenates every extracted text file, each framed by banners and headed by
// the document's download URL.
func BuildText(src TextSource, urlPrefix string) ([]byte, error) {
	ids, err := src.Texts()
	if err != nil {
		return nil, fmt.Errorf("list texts: %w", err)
	}
	var buf bytes.Buffer
	for i, id := range ids {
		// #nosec G304 -- path comes from the store.
		content, err := os.ReadFile(src.TextPath(id))
		if err != nil {
			return nil, fmt.Errorf("read text %s: %w", id, err)
		}
		if i > 0 {
			buf.WriteString(separator)
		}
		buf.WriteString(beginBanner)
		buf.WriteString(urlPrefix)
		buf.WriteString(string(id))
		buf.WriteByte('\n')
		buf.Write(content)
		buf.WriteString(endBanner)
	}
	return buf.Bytes(), nil
}
