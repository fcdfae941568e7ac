// Package agent reviews rule plans with Gemini.
package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/genai"
)

// Session is an interactive review conversation with an expert.
type Session struct {
	w      io.Writer
	r      *bufio.Reader
	Expert *Expert
	// Print writes a reply, Fprintln by default.
	Print func(w io.Writer, markdown string)
}

// New creates a new Session writing to w and reading the user's questions
// from r.
func New(w io.Writer, r io.Reader, expert *Expert) *Session {
	return &Session{
		w:      w,
		r:      bufio.NewReader(r),
		Expert: expert,
		Print:  func(w io.Writer, md string) { fmt.Fprintln(w, md) },
	}
}

const prompt = "review> "

// Run asks the prompts in order, then reads questions from the user until
// "bye" or the end of the input.
func (s *Session) Run(ctx context.Context, client *genai.Client, prompts ...string) error {
	if !s.Expert.Started() {
		if err := s.Expert.Start(ctx, client); err != nil {
			return err
		}
	}

	fmt.Fprintln(s.w, "Rule plan review. Type 'bye' to exit.")

	for {
		fmt.Fprint(s.w, prompt)
		var input string

		// Flush prompts from the list and then ask for the user.
		if len(prompts) > 0 {
			input, prompts = strings.TrimSpace(prompts[0]), prompts[1:]
			if input == "" {
				continue
			}
			fmt.Fprintln(s.w, input)
		} else {
			var err error
			input, err = s.r.ReadString('\n')
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
		}

		if strings.TrimSpace(input) == "bye" {
			return nil
		}

		content, err := s.Expert.Ask(ctx, &genai.Part{Text: input})
		if err != nil {
			return err
		}
		s.Print(s.w, Text(content))
	}
}
