package utils

import "testing"

func TestCountWords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "empty string", input: "", expected: 1},
		{name: "only whitespace", input: " \t\n", expected: 1},
		{name: "single word", input: "hello", expected: 1},
		{name: "multiple words", input: "the quick brown fox", expected: 4},
		{name: "mixed whitespace", input: "one\ttwo\nthree  four", expected: 4},
		{name: "surrounding whitespace", input: "  padded text  ", expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountWords(tt.input); got != tt.expected {
				t.Errorf("CountWords(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCountSentences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "empty string", input: "", expected: 0},
		{name: "no terminator", input: "no terminator here", expected: 0},
		{name: "one sentence", input: "Hello world.", expected: 1},
		{name: "mixed terminators", input: "Really? Yes! Fine.", expected: 3},
		{name: "repeated terminators count each", input: "Wow!!", expected: 2},
		{name: "cjk terminators", input: "你好。你好吗？好！", expected: 3},
		{name: "trailing text without terminator", input: "First. Second", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountSentences(tt.input); got != tt.expected {
				t.Errorf("CountSentences(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCountParagraphs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "empty string", input: "", expected: 0},
		{name: "single line", input: "a", expected: 1},
		{name: "blank line between", input: "a\n\nb", expected: 2},
		{name: "single line break", input: "a\nb", expected: 2},
		{name: "windows line breaks", input: "a\r\n\r\nb\r\nc", expected: 3},
		{name: "blank segments ignored", input: "\n\n  \n a \n\t\n", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountParagraphs(tt.input); got != tt.expected {
				t.Errorf("CountParagraphs(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTextStatsNonNegative(t *testing.T) {
	inputs := []string{"", " ", "a", "...", "\n\n\n", "a. b! c? 。？！", "x\ny\n\nz"}
	for _, in := range inputs {
		if CountWords(in) < 0 || CountSentences(in) < 0 || CountParagraphs(in) < 0 {
			t.Errorf("negative count for %q", in)
		}
		if CountWords(in) != CountWords(in) || CountSentences(in) != CountSentences(in) {
			t.Errorf("non deterministic count for %q", in)
		}
	}
}
