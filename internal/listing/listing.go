// Package listing reads stance tallies, supporter names, and document IDs out of an
// OLIS public testimony listing page. The page is scanned line by line; no HTML parser is used.
package listing

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

// The stance filter legend repeats the Support and Oppose markers once per page.
const (
	supportLegendLines = 1
	opposeLegendLines  = 1
)

var (
	rowStart   = regexp.MustCompile(`<td><a href="/liz/[a-zA-Z0-9]+/Downloads/PublicTestimonyDocument/`)
	cellInner  = regexp.MustCompile(`<td[^>]*>(.*)</td>`)
	documentID = regexp.MustCompile(`/PublicTestimonyDocument/(\d+)`)
)

// DocumentPath returns the path fragment every testimony link for a session contains.
func DocumentPath(session string) string {
	return fmt.Sprintf("/liz/%s/Downloads/PublicTestimonyDocument/", session)
}

// Count tallies the listing page for the given legislative session (e.g. "2023R1").
func Count(page []byte, session string) testimony.Results {
	docPath := DocumentPath(session)
	var total, support, oppose, unknown int
	forEachLine(page, func(line string) {
		if strings.Contains(line, docPath) {
			total++
		}
		if strings.Contains(line, string(testimony.StanceSupport)) {
			support++
		}
		if strings.Contains(line, string(testimony.StanceOppose)) {
			oppose++
		}
		if strings.Contains(line, string(testimony.StanceUnknown)) {
			unknown++
		}
	})
	return testimony.Results{
		Total:   total,
		Support: max(support-supportLegendLines, 0),
		Oppose:  max(oppose-opposeLegendLines, 0),
		Unknown: unknown,
	}
}

// Supporters returns the submitter names of every row marked Support, in page order.
func Supporters(page []byte) []string {
	var (
		names []string
		cell  int
		name  string
	)
	forEachLine(page, func(line string) {
		if !strings.Contains(line, "<td") {
			return
		}
		if rowStart.MatchString(line) {
			cell, name = 0, ""
		}
		cell++
		content := line
		if m := cellInner.FindStringSubmatch(line); m != nil {
			content = m[1]
		}
		switch cell {
		case 2:
			name = content
		case 4:
			if strings.Contains(content, string(testimony.StanceSupport)) {
				names = append(names, name)
			}
		}
	})
	return names
}

// DocumentIDs returns the distinct testimony document IDs linked from the page, in page order.
func DocumentIDs(page []byte) []testimony.DocumentID {
	seen := make(map[testimony.DocumentID]struct{})
	var ids []testimony.DocumentID
	forEachLine(page, func(line string) {
		m := documentID.FindStringSubmatch(line)
		if m == nil {
			return
		}
		id := testimony.DocumentID(m[1])
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids
}

func forEachLine(page []byte, fn func(line string)) {
	scanner := bufio.NewScanner(bytes.NewReader(page))
	scanner.Buffer(make([]byte, 0, 64*1024), len(page)+1)
	for scanner.Scan() {
		fn(scanner.Text())
	}
}
