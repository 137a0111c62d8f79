package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkBlockFilter filters out <think>...</think> blocks from streamed or complete content
type ThinkBlockFilter struct {
	inThinkBlock bool
	buffer       strings.Builder
}

// ProcessChunk processes a chunk of content, filtering think blocks.
// Text that might be the start of a tag is held back until the next chunk.
func (f *ThinkBlockFilter) ProcessChunk(chunk string) (filtered string, isThinking bool) {
	var output strings.Builder

	for _, char := range chunk {
		f.buffer.WriteRune(char)
		buf := f.buffer.String()

		if f.inThinkBlock {
			if strings.HasSuffix(buf, thinkClose) {
				f.inThinkBlock = false
				f.buffer.Reset()
			} else if len(buf) >= len(thinkClose) {
				// Only a partial closing tag is worth remembering
				f.buffer.Reset()
				f.buffer.WriteString(buf[len(buf)-len(thinkClose)+1:])
			}
			continue
		}

		if strings.HasSuffix(buf, thinkOpen) {
			output.WriteString(buf[:len(buf)-len(thinkOpen)])
			f.inThinkBlock = true
			f.buffer.Reset()
			continue
		}

		keep := partialTagSuffix(buf, thinkOpen)
		output.WriteString(buf[:len(buf)-keep])
		f.buffer.Reset()
		f.buffer.WriteString(buf[len(buf)-keep:])
	}

	return output.String(), f.inThinkBlock
}

// partialTagSuffix returns the length of the longest suffix of s that is a proper prefix of tag
func partialTagSuffix(s, tag string) int {
	for n := min(len(s), len(tag)-1); n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}

// Flush returns any buffered text that turned out not to be a tag.
// Text inside an unterminated think block is discarded.
func (f *ThinkBlockFilter) Flush() string {
	defer f.buffer.Reset()
	if f.inThinkBlock {
		return ""
	}
	return f.buffer.String()
}

// StripThinkBlocks removes <think>...</think> reasoning from a complete answer
func StripThinkBlocks(content string) string {
	var f ThinkBlockFilter
	out, _ := f.ProcessChunk(content)
	return strings.TrimSpace(out + f.Flush())
}
