package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadPassword reads a password from in without echoing when in is a
// terminal. Pipes and redirected input are read as a single line so scripted
// logins keep working.
func ReadPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	if prompt != "" {
		_, _ = fmt.Fprint(out, prompt)
	}
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return readLine(in)
}

// ReadLine reads one line of visible input, for username prompts.
func ReadLine(in *os.File, out io.Writer, prompt string) (string, error) {
	if prompt != "" {
		_, _ = fmt.Fprint(out, prompt)
	}
	return readLine(in)
}

func readLine(in io.Reader) (string, error) {
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
