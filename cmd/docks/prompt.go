package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrAborted is returned when a confirmation is declined.
var ErrAborted = errors.New("aborted")

// confirm asks a yes/no question and fails unless the answer starts with y.
// --yes and --dry skip the question.
func (a *app) confirm(question, abortMessage string) error {
	if a.yes || a.dry {
		return nil
	}
	if a.reader == nil {
		a.reader = bufio.NewReader(a.in)
	}

	fmt.Fprintf(a.out, "%s [y/N]: ", question)
	answer, err := a.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read answer: %w", err)
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
		return fmt.Errorf("%s: %w", abortMessage, ErrAborted)
	}
	return nil
}
