package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_SingleSection(t *testing.T) {
	c := NewHeadingChunker(1200, 40)
	raw := "## Start\nHello world. This is enough text to pass the length gate for ingestion testing purposes."

	chunks := c.Split(raw)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Start", chunks[0].Heading)
	assert.Equal(t, 0, chunks[0].Index)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "Start\n"))
	assert.Contains(t, chunks[0].Text, "Hello world.")
}

func TestSplit_NoHeadingsUsesDefault(t *testing.T) {
	c := NewHeadingChunker(1200, 40)
	raw := "The conveyor must be inspected before every shift change and lubricated weekly by certified staff."

	chunks := c.Split(raw)
	require.Len(t, chunks, 1)
	assert.Equal(t, DefaultHeading, chunks[0].Heading)
}

func TestSplit_OversizedSectionPacksParagraphs(t *testing.T) {
	c := NewHeadingChunker(200, 10)
	var b strings.Builder
	b.WriteString("## Maintenance\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "Paragraph number %d about routine belt tension checks and roller alignment procedures.\n\n", i)
	}

	chunks := c.Split(b.String())
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 200)
		assert.Equal(t, "Maintenance", ch.Heading)
		assert.True(t, strings.HasPrefix(ch.Text, "Maintenance\n"))
	}
}

func TestSplit_ReconstructsParagraphsExactlyOnce(t *testing.T) {
	c := NewHeadingChunker(180, 10)
	paras := []string{
		"First paragraph on emergency stop buttons placed at both ends of the line.",
		"Second paragraph covering lockout tagout rules before opening panels.",
		"Third paragraph on restart checks after any unplanned shutdown event.",
		"Fourth paragraph about hearing protection zones near the stamping press.",
	}
	raw := "## Safety\n" + strings.Join(paras, "\n\n")

	chunks := c.Split(raw)
	var rejoined []string
	for _, ch := range chunks {
		body := strings.TrimPrefix(ch.Text, "Safety\n")
		rejoined = append(rejoined, strings.Split(body, "\n\n")...)
	}
	assert.Equal(t, paras, rejoined)
}

func TestSplit_DropsNoiseChunks(t *testing.T) {
	c := NewHeadingChunker(1200, 40)
	raw := "## Stub\n- - - ***\n\n## Real\nThis section has plenty of meaningful alphanumeric content to be retained in the index."

	chunks := c.Split(raw)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Real", chunks[0].Heading)
}

func TestSplit_IndexDenseAndOrdered(t *testing.T) {
	c := NewHeadingChunker(1200, 10)
	raw := "## One\nFirst section body with enough characters to survive.\n\n## Two\nSecond section body with enough characters to survive.\n\n### Three\nThird section body with enough characters to survive."

	chunks := c.Split(raw)
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
	assert.Equal(t, []string{"One", "Two", "Three"}, []string{chunks[0].Heading, chunks[1].Heading, chunks[2].Heading})
}

func TestSplit_HeadingLongerThanChunkBound(t *testing.T) {
	c := NewHeadingChunker(1200, 10)
	heading := strings.Repeat("x", 1300)
	raw := "## " + heading + "\nFirst paragraph about greasing the main bearing on schedule.\n\nSecond paragraph about torque values for the coupling bolts."

	chunks := c.Split(raw)
	require.NotEmpty(t, chunks)
	joined := ""
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 1200)
		assert.Equal(t, heading, ch.Heading)
		joined += ch.Text
	}
	assert.Contains(t, joined, "greasing the main bearing")
	assert.Contains(t, joined, "torque values for the coupling bolts")
}

func TestSplit_HeadingFillingWholeChunkBoundTerminates(t *testing.T) {
	c := NewHeadingChunker(1200, 10)
	heading := strings.Repeat("y", 1199)
	raw := "## " + heading + "\nBody paragraph with instructions for replacing the drive chain links.\n\nAnother body paragraph with tensioner adjustment steps."

	chunks := c.Split(raw)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 1200)
		assert.Equal(t, heading, ch.Heading)
	}
}

func TestSplit_MultibyteHeadingTruncatesOnRuneBoundary(t *testing.T) {
	c := NewHeadingChunker(100, 5)
	heading := strings.Repeat("ü", 120)
	raw := "## " + heading + "\nShort body one here.\n\nShort body two here."

	chunks := c.Split(raw)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 100)
		assert.True(t, strings.ContainsRune(ch.Text, '\n'))
	}
}

func TestSplit_LeadingContentBeforeFirstHeading(t *testing.T) {
	c := NewHeadingChunker(1200, 10)
	raw := "Intro text before any heading that still deserves to be indexed properly.\n\n## Later\nBody of the later section with sufficient length to keep."

	chunks := c.Split(raw)
	require.Len(t, chunks, 2)
	assert.Equal(t, DefaultHeading, chunks[0].Heading)
	assert.Equal(t, "Later", chunks[1].Heading)
}
