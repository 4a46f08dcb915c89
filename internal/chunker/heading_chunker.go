package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"opsvoice/internal/domain"
)

// DefaultHeading labels content appearing before the first heading, or
// a document with no headings at all.
const DefaultHeading = "General"

// HeadingChunker splits markdown-like text into heading-scoped chunks
// bounded by a maximum size. Level 2-4 headings open sections; sections
// larger than the bound are packed greedily on paragraph boundaries
// under a repeated heading prefix.
type HeadingChunker struct {
	maxChunkChars int
	minAlnumChars int
	headingRe     *regexp.Regexp
	paragraphRe   *regexp.Regexp
}

func NewHeadingChunker(maxChunkChars, minAlnumChars int) *HeadingChunker {
	if maxChunkChars <= 0 {
		maxChunkChars = 1200
	}
	if minAlnumChars < 0 {
		minAlnumChars = 0
	}
	return &HeadingChunker{
		maxChunkChars: maxChunkChars,
		minAlnumChars: minAlnumChars,
		headingRe:     regexp.MustCompile(`^#{2,4}\s+(.+?)\s*$`),
		paragraphRe:   regexp.MustCompile(`\n\s*\n`),
	}
}

type section struct {
	heading string
	body    string
}

// Split returns heading-labeled chunks in document reading order.
// Chunks whose alphanumeric content is at or below the noise threshold
// are dropped.
func (c *HeadingChunker) Split(raw string) []domain.PendingChunk {
	var out []domain.PendingChunk
	for _, sec := range c.sections(raw) {
		for _, text := range c.pack(sec) {
			if alnumLen(text) <= c.minAlnumChars {
				continue
			}
			out = append(out, domain.PendingChunk{
				Heading: sec.heading,
				Index:   len(out),
				Text:    text,
			})
		}
	}
	return out
}

func (c *HeadingChunker) sections(raw string) []section {
	var secs []section
	cur := section{heading: DefaultHeading}
	var body []string
	flush := func() {
		cur.body = strings.TrimSpace(strings.Join(body, "\n"))
		if cur.body != "" {
			secs = append(secs, cur)
		}
		body = body[:0]
	}
	for _, line := range strings.Split(raw, "\n") {
		if m := c.headingRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = section{heading: m[1]}
			continue
		}
		body = append(body, line)
	}
	flush()
	return secs
}

// pack emits the section as a single chunk when it fits, otherwise
// greedily fills buffers with whole paragraphs, each buffer reserving
// the heading prefix.
func (c *HeadingChunker) pack(sec section) []string {
	whole := sec.heading + "\n" + sec.body
	if len(whole) <= c.maxChunkChars {
		return []string{whole}
	}

	prefix := c.chunkPrefix(sec.heading)
	var chunks []string
	buf := prefix
	for _, para := range c.paragraphRe.Split(sec.body, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, piece := range c.fit(para, c.maxChunkChars-len(prefix)) {
			candidate := piece
			if buf != prefix {
				candidate = "\n\n" + piece
			}
			if len(buf)+len(candidate) > c.maxChunkChars {
				chunks = append(chunks, buf)
				buf = prefix + piece
				continue
			}
			buf += candidate
		}
	}
	if buf != prefix {
		chunks = append(chunks, buf)
	}
	return chunks
}

// chunkPrefix bounds the repeated heading prefix to half the chunk
// limit, so packed paragraphs always have positive room beside it. A
// heading that long still labels its chunks in full via the section.
func (c *HeadingChunker) chunkPrefix(heading string) string {
	limit := c.maxChunkChars / 2
	if len(heading)+1 > limit {
		heading = truncateOnRune(heading, limit-1)
	}
	return heading + "\n"
}

func truncateOnRune(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// fit hard-wraps a paragraph that alone exceeds the space left beside
// the heading prefix. Normal paragraphs pass through whole.
func (c *HeadingChunker) fit(para string, space int) []string {
	if space < 1 {
		space = 1
	}
	if len(para) <= space {
		return []string{para}
	}
	var pieces []string
	for len(para) > space {
		cut := space
		if i := strings.LastIndexByte(para[:space], ' '); i > 0 {
			cut = i
		}
		pieces = append(pieces, strings.TrimSpace(para[:cut]))
		para = strings.TrimSpace(para[cut:])
	}
	if para != "" {
		pieces = append(pieces, para)
	}
	return pieces
}

func alnumLen(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
