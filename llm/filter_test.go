package llm

import "testing"

func TestStripThinkBlocks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no think block", "Take a slow breath with me.", "Take a slow breath with me."},
		{"leading think block", "<think>user is stressed</think>Let's try a grounding exercise.", "Let's try a grounding exercise."},
		{"think block in the middle", "First, <think>hmm</think>notice five things you can see.", "First, notice five things you can see."},
		{"unterminated think block", "Okay.<think>still reasoning", "Okay."},
		{"angle bracket that is not a tag", "You matter <3", "You matter <3"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripThinkBlocks(tt.input); got != tt.want {
				t.Errorf("StripThinkBlocks(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestThinkBlockFilterAcrossChunks(t *testing.T) {
	var f ThinkBlockFilter
	var out string
	for _, chunk := range []string{"<thi", "nk>plan</th", "ink>Hello ", "there, friend"} {
		filtered, _ := f.ProcessChunk(chunk)
		out += filtered
	}
	out += f.Flush()

	if out != "Hello there, friend" {
		t.Errorf("Expected think block removed across chunks, got %q", out)
	}
}
